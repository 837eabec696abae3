package slot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/calendar"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
)

// DoctorLookup resolves the doctor a slot operation targets.
type DoctorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

type BulkInput struct {
	DoctorID    uuid.UUID
	Start       time.Time
	End         time.Time
	Times       []string
	ExcludeDays []string
}

type Service struct {
	repo    Repository
	doctors DoctorLookup
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, doctors DoctorLookup, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		doctors: doctors,
		logger:  logger.With().Str("component", "slots").Logger(),
		now:     time.Now,
	}
}

func (s *Service) today() time.Time {
	return calendar.DateOf(s.now())
}

func parseTimes(times []string) ([]Label, error) {
	if len(times) == 0 {
		return nil, apperr.Validation("please provide at least one time slot")
	}
	return ParseTimeLabels(times)
}

// CreateSlots adds the given times to one day of the doctor's calendar.
// Times that already exist are skipped; only new slots are returned.
func (s *Service) CreateSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, times []string) ([]Slot, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	date = calendar.DateOf(date)
	if date.Before(s.today()) {
		return nil, ErrPastDate
	}
	labels, err := parseTimes(times)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.InsertMany(ctx, doctorID, date, labels)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("date", calendar.Format(date)).
		Int("requested", len(labels)).
		Int("created", len(created)).
		Msg("slots created")
	return created, nil
}

// BulkCreate fills every day in [Start, End] the doctor works on, minus
// ExcludeDays. Days already behind us are skipped.
func (s *Service) BulkCreate(ctx context.Context, in BulkInput) (int, error) {
	doc, err := s.doctors.GetByID(ctx, in.DoctorID)
	if err != nil {
		return 0, err
	}
	start, end := calendar.DateOf(in.Start), calendar.DateOf(in.End)
	if start.After(end) {
		return 0, ErrDateRangeReversed
	}
	if int(end.Sub(start).Hours()/24)+1 > MaxBulkDays {
		return 0, ErrDateRangeTooLong
	}
	labels, err := parseTimes(in.Times)
	if err != nil {
		return 0, err
	}

	excluded := make(map[time.Weekday]bool, len(in.ExcludeDays))
	for _, name := range in.ExcludeDays {
		wd, ok := calendar.ParseWeekday(name)
		if !ok {
			return 0, apperr.Validation(fmt.Sprintf("invalid exclude day %q", name))
		}
		excluded[wd] = true
	}

	today := s.today()
	total := 0
	for _, day := range calendar.Days(start, end) {
		if day.Before(today) || excluded[day.Weekday()] || !doc.WorksOn(calendar.WeekdayName(day)) {
			continue
		}
		created, err := s.repo.InsertMany(ctx, in.DoctorID, day, labels)
		if err != nil {
			return total, fmt.Errorf("create slots for %s: %w", calendar.Format(day), err)
		}
		total += len(created)
	}

	s.logger.Info().
		Str("doctor_id", in.DoctorID.String()).
		Str("start", calendar.Format(start)).
		Str("end", calendar.Format(end)).
		Int("created", total).
		Msg("bulk slots created")
	return total, nil
}

// ListAvailable returns the open slots of one day in clock order.
func (s *Service) ListAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListAvailable(ctx, doctorID, calendar.DateOf(date))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartMinute < slots[j].StartMinute })
	return slots, nil
}

func (s *Service) ListForDoctor(ctx context.Context, f Filter) ([]Slot, error) {
	if _, err := s.doctors.GetByID(ctx, f.DoctorID); err != nil {
		return nil, err
	}
	if f.Date != nil {
		d := calendar.DateOf(*f.Date)
		f.Date = &d
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Book(ctx context.Context, id, appointmentID uuid.UUID) (*Slot, error) {
	return s.repo.Book(ctx, id, appointmentID)
}

func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	return s.repo.Release(ctx, id)
}

func (s *Service) ReleaseFor(ctx context.Context, id, appointmentID uuid.UUID) (bool, error) {
	return s.repo.ReleaseFor(ctx, id, appointmentID)
}

func (s *Service) ToggleBlock(ctx context.Context, id uuid.UUID) (*Slot, error) {
	sl, err := s.repo.ToggleBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("slot_id", id.String()).Bool("blocked", sl.IsBlocked).Msg("slot block toggled")
	return sl, nil
}

// BlockDates blocks every unbooked slot on the given days and reports how
// many changed.
func (s *Service) BlockDates(ctx context.Context, doctorID uuid.UUID, dates []time.Time) (int, error) {
	if len(dates) == 0 {
		return 0, apperr.Validation("please provide an array of dates to block")
	}
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return 0, err
	}
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = calendar.DateOf(d)
	}

	n, err := s.repo.BlockDates(ctx, doctorID, days)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("doctor_id", doctorID.String()).Int("dates", len(days)).Int("blocked", n).Msg("dates blocked")
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) DefaultTimes() []string {
	return DefaultTimes()
}

// IsUnavailable reports whether err means the slot exists but cannot be
// booked right now.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrSlotBooked) || errors.Is(err, ErrSlotBlocked)
}
