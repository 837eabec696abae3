package doctor

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/calendar"
)

const (
	maxExperience = 60
	maxAboutLen   = 500
)

type Service struct {
	repo   Repository
	ledger AppointmentLedger
	logger zerolog.Logger
}

func NewService(repo Repository, ledger AppointmentLedger, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		logger: logger.With().Str("component", "doctors").Logger(),
	}
}

func (s *Service) Specializations() []string {
	out := make([]string, len(Specializations))
	copy(out, Specializations)
	return out
}

func (s *Service) List(ctx context.Context, f Filter) ([]Doctor, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, d *Doctor) (*Doctor, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.ImageURL == "" {
		d.ImageURL = DefaultImageURL
	}
	if d.AvailableDays == nil {
		d.AvailableDays = append([]string(nil), DefaultAvailableDays...)
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	d.IsActive = true

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Str("specialization", d.Specialization).Msg("doctor created")
	return d, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		d.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		d.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Phone != nil {
		d.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Specialization != nil {
		d.Specialization = *p.Specialization
	}
	if p.Experience != nil {
		d.Experience = *p.Experience
	}
	if p.Qualification != nil {
		d.Qualification = strings.TrimSpace(*p.Qualification)
	}
	if p.ImageURL != nil {
		d.ImageURL = *p.ImageURL
	}
	if p.AvailableDays != nil {
		d.AvailableDays = p.AvailableDays
	}
	if p.ConsultationFee != nil {
		d.ConsultationFee = *p.ConsultationFee
	}
	if p.About != nil {
		d.About = *p.About
	}
	if p.IsActive != nil {
		d.IsActive = *p.IsActive
	}

	if err := validate(d); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Delete refuses while the doctor still has upcoming pending or confirmed
// appointments.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	upcoming, err := s.ledger.CountUpcomingForDoctor(ctx, id)
	if err != nil {
		return fmt.Errorf("count upcoming appointments: %w", err)
	}
	if upcoming > 0 {
		return apperr.InvalidState(fmt.Sprintf(
			"cannot delete doctor with %d upcoming appointments, please cancel or reassign them first", upcoming))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor deleted")
	return nil
}

func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.ledger.CountByStatusForDoctor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	upcoming, err := s.ledger.CountUpcomingForDoctor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count upcoming appointments: %w", err)
	}
	return &Stats{Doctor: d, Appointments: counts, Upcoming: upcoming}, nil
}

func validate(d *Doctor) error {
	if n := len(d.Name); n < 2 || n > 100 {
		return apperr.Validation("name must be between 2 and 100 characters")
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		return apperr.Validation("please provide a valid email")
	}
	if strings.TrimSpace(d.Phone) == "" {
		return apperr.Validation("phone number is required")
	}
	if !isSpecialization(d.Specialization) {
		return apperr.Validation("invalid specialization")
	}
	if d.Experience < 0 || d.Experience > maxExperience {
		return apperr.Validation(fmt.Sprintf("experience must be between 0 and %d years", maxExperience))
	}
	if d.Qualification == "" {
		return apperr.Validation("qualification is required")
	}
	if d.ConsultationFee < 0 {
		return apperr.Validation("consultation fee must be a positive number")
	}
	for i, day := range d.AvailableDays {
		wd, ok := calendar.ParseWeekday(day)
		if !ok {
			return apperr.Validation(fmt.Sprintf("invalid available day %q", day))
		}
		d.AvailableDays[i] = wd.String()
	}
	if len(d.About) > maxAboutLen {
		return apperr.Validation(fmt.Sprintf("about cannot exceed %d characters", maxAboutLen))
	}
	return nil
}

func isSpecialization(v string) bool {
	for _, s := range Specializations {
		if s == v {
			return true
		}
	}
	return false
}
