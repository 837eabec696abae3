package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/calendar"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/notify"
	redisclient "github.com/hackgods/dental-clinic-booking/internal/redis"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

const (
	maxReasonLen = 500
	maxNotesLen  = 1000
)

var ErrSlotBeingBooked = apperr.Conflict("slot is currently being booked, please retry")

type DoctorLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// SlotStore is the part of the slot service the booking flow mutates.
type SlotStore interface {
	Get(ctx context.Context, id uuid.UUID) (*slot.Slot, error)
	Book(ctx context.Context, id, appointmentID uuid.UUID) (*slot.Slot, error)
	Release(ctx context.Context, id uuid.UUID) error
	ReleaseFor(ctx context.Context, id, appointmentID uuid.UUID) (bool, error)
}

type BookInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	SlotID    uuid.UUID
	Date      *time.Time // optional, must match the slot
	Time      string     // optional, must match the slot
	Reason    string
}

type Service struct {
	repo     Repository
	slots    SlotStore
	doctors  DoctorLookup
	patients PatientLookup
	locker   redisclient.Locker
	notifier notify.Dispatcher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(
	repo Repository,
	slots SlotStore,
	doctors DoctorLookup,
	patients PatientLookup,
	locker redisclient.Locker,
	notifier notify.Dispatcher,
	logger zerolog.Logger,
) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if notifier == nil {
		notifier = notify.NopDispatcher{}
	}
	return &Service{
		repo:     repo,
		slots:    slots,
		doctors:  doctors,
		patients: patients,
		locker:   locker,
		notifier: notifier,
		logger:   logger.With().Str("component", "appointments").Logger(),
		now:      time.Now,
	}
}

func (s *Service) today() time.Time {
	return calendar.DateOf(s.now())
}

// Book reserves a slot for a patient. The appointment row and the slot
// update either both stick or the appointment is removed again.
func (s *Service) Book(ctx context.Context, in BookInput) (*Detail, error) {
	if len(in.Reason) > maxReasonLen {
		return nil, apperr.Validation(fmt.Sprintf("reason cannot exceed %d characters", maxReasonLen))
	}

	doc, err := s.doctors.GetByID(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doc.IsActive {
		return nil, apperr.InvalidState("doctor is not available for appointments")
	}

	sl, err := s.slots.Get(ctx, in.SlotID)
	if err != nil {
		return nil, err
	}
	if err := sl.Unavailable(); err != nil {
		return nil, err
	}
	if sl.DoctorID != in.DoctorID {
		return nil, apperr.InvalidState("slot does not belong to this doctor")
	}
	if in.Date != nil && !calendar.DateOf(*in.Date).Equal(sl.Date) {
		return nil, apperr.Validation("date does not match the selected slot")
	}
	if in.Time != "" && !sl.SameTime(in.Time) {
		return nil, apperr.Validation("time does not match the selected slot")
	}
	if sl.Date.Before(s.today()) {
		return nil, apperr.Validation("cannot book appointments for past dates")
	}

	patient, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, sl.ID, func(lockCtx context.Context) error {
		exists, err := s.repo.HasActive(lockCtx, in.PatientID, in.DoctorID, sl.Date)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateBooking
		}

		doctorID, slotID := doc.ID, sl.ID
		appt := &Appointment{
			PatientID: in.PatientID,
			DoctorID:  &doctorID,
			SlotID:    &slotID,
			Date:      sl.Date,
			Time:      sl.Time,
			Status:    StatusPending,
			Reason:    in.Reason,
		}
		if err := s.repo.Create(lockCtx, appt); err != nil {
			return err
		}

		if _, err := s.slots.Book(lockCtx, sl.ID, appt.ID); err != nil {
			s.compensate(ctx, appt.ID, sl.ID, err)
			return err
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("slot_id", sl.ID.String()).
		Str("patient_id", patient.ID.String()).
		Msg("appointment booked")

	detail := &Detail{
		Appointment: *created,
		Doctor:      doctorSummary(doc),
		Patient:     patientSummary(patient),
	}
	s.notify(ctx, notify.EventBooked, detail)
	return detail, nil
}

// compensate removes an appointment whose slot could not be booked. A failed
// Book may still have committed, so the slot is first released if it points
// at this appointment. If that release fails the appointment is kept.
func (s *Service) compensate(ctx context.Context, appointmentID, slotID uuid.UUID, cause error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	log := s.logger.With().
		AnErr("cause", cause).
		Str("appointment_id", appointmentID.String()).
		Str("slot_id", slotID.String()).
		Logger()

	released, err := s.slots.ReleaseFor(cleanupCtx, slotID, appointmentID)
	if err != nil {
		log.Error().Err(err).Msg("release slot after failed booking, appointment kept")
		return
	}
	if err := s.repo.Delete(cleanupCtx, appointmentID); err != nil {
		log.Error().Err(err).Bool("slot_released", released).Msg("remove appointment after failed slot booking")
		return
	}
	log.Warn().Bool("slot_released", released).Msg("slot booking failed, appointment removed")
}

func (s *Service) Confirm(ctx context.Context, actor Actor, id uuid.UUID, notes string) (*Detail, error) {
	if len(notes) > maxNotesLen {
		return nil, apperr.Validation(fmt.Sprintf("notes cannot exceed %d characters", maxNotesLen))
	}
	t := Transition{To: StatusConfirmed}
	if notes != "" {
		t.Notes = &notes
	}

	detail, err := s.transition(ctx, actor, id, t)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.EventConfirmed, detail)
	return detail, nil
}

// Cancel marks the appointment cancelled and then frees its slot. A failed
// release is returned to the caller after the status has been written.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Detail, error) {
	if len(reason) > maxReasonLen {
		return nil, apperr.Validation(fmt.Sprintf("cancellation reason cannot exceed %d characters", maxReasonLen))
	}
	role := actor.Role
	t := Transition{To: StatusCancelled, CancelledBy: &role, CancellationReason: &reason}

	detail, err := s.transition(ctx, actor, id, t)
	if err != nil {
		return nil, err
	}

	if detail.SlotID != nil {
		if err := s.slots.Release(ctx, *detail.SlotID); err != nil && !errors.Is(err, slot.ErrSlotNotFound) {
			s.logger.Error().Err(err).
				Str("appointment_id", id.String()).
				Str("slot_id", detail.SlotID.String()).
				Msg("appointment cancelled but slot release failed")
			return nil, fmt.Errorf("release slot %s: %w", *detail.SlotID, err)
		}
	}

	s.notify(ctx, notify.EventCancelled, detail)
	return detail, nil
}

// Complete leaves the slot booked; the visit happened.
func (s *Service) Complete(ctx context.Context, actor Actor, id uuid.UUID, notes string) (*Detail, error) {
	if len(notes) > maxNotesLen {
		return nil, apperr.Validation(fmt.Sprintf("notes cannot exceed %d characters", maxNotesLen))
	}
	t := Transition{To: StatusCompleted}
	if notes != "" {
		t.Notes = &notes
	}
	return s.transition(ctx, actor, id, t)
}

func (s *Service) transition(ctx context.Context, actor Actor, id uuid.UUID, t Transition) (*Detail, error) {
	if !actor.IsAdmin() && t.To != StatusCancelled {
		// admin-only moves fail before the lookup
		return nil, authorize(actor, &Appointment{}, t.To)
	}

	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, &detail.Appointment, t.To); err != nil {
		return nil, err
	}
	if err := checkTransition(detail.Status, t.To); err != nil {
		return nil, err
	}

	t.From = detail.Status
	t.At = s.now().UTC()
	updated, err := s.repo.Transition(ctx, id, t)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("actor_id", actor.UserID.String()).
		Msg("appointment status changed")

	detail.Appointment = *updated
	return detail, nil
}

// Delete is the administrative hard delete. The slot is released first
// when it is still held by this appointment.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("only administrators can delete appointments")
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if appt.SlotID != nil {
		sl, err := s.slots.Get(ctx, *appt.SlotID)
		switch {
		case errors.Is(err, slot.ErrSlotNotFound):
		case err != nil:
			return err
		case sl.IsBooked && sl.AppointmentID != nil && *sl.AppointmentID == appt.ID:
			if err := s.slots.Release(ctx, sl.ID); err != nil {
				return fmt.Errorf("release slot %s: %w", sl.ID, err)
			}
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("appointment_id", id.String()).Str("actor_id", actor.UserID.String()).Msg("appointment deleted")
	return nil
}

// Get returns one appointment; patients may only read their own.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Detail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && detail.PatientID != actor.UserID {
		return nil, apperr.Forbidden("not authorized to access this appointment")
	}
	return detail, nil
}

// ListMine lists a patient's appointments, newest date first. upcoming
// keeps only active appointments from today on and overrides status.
func (s *Service) ListMine(ctx context.Context, patientID uuid.UUID, status Status, upcoming bool) ([]Detail, error) {
	f := Filter{PatientID: &patientID, Status: status}
	if upcoming {
		today := s.today()
		f.Status = ""
		f.FromDate = &today
		f.ActiveOnly = true
	}
	return s.repo.List(ctx, f)
}

func (s *Service) ListAll(ctx context.Context, f Filter) ([]Detail, error) {
	if f.Date != nil {
		d := calendar.DateOf(*f.Date)
		f.Date = &d
	}
	return s.repo.List(ctx, f)
}

// Stats counts appointments created in [from, to]; nil bounds default to
// the epoch and now.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	start := time.Unix(0, 0).UTC()
	end := s.now().UTC()
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	if start.After(end) {
		return nil, apperr.Validation("start date must be before end date")
	}
	return s.repo.Stats(ctx, start, end, s.today())
}

// ReminderEvents lists a reminder for each active appointment on day.
func (s *Service) ReminderEvents(ctx context.Context, day time.Time) ([]notify.Event, error) {
	d := calendar.DateOf(day)
	details, err := s.repo.List(ctx, Filter{Date: &d, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	events := make([]notify.Event, 0, len(details))
	for i := range details {
		ev, ok := eventFor(notify.EventReminder, &details[i])
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *Service) notify(ctx context.Context, typ notify.EventType, d *Detail) {
	ev, ok := eventFor(typ, d)
	if !ok {
		s.logger.Warn().Str("appointment_id", d.ID.String()).Str("type", string(typ)).Msg("no recipient, notification skipped")
		return
	}
	s.notifier.Dispatch(ctx, ev)
}

func eventFor(typ notify.EventType, d *Detail) (notify.Event, bool) {
	if d.Patient == nil || d.Patient.Email == "" {
		return notify.Event{}, false
	}
	ev := notify.Event{
		Type:          typ,
		AppointmentID: d.ID,
		To:            d.Patient.Email,
		PatientName:   d.Patient.Name,
		Date:          calendar.Format(d.Date),
		Time:          d.Time,
		Status:        string(d.Status),
	}
	if d.Doctor != nil {
		ev.DoctorName = d.Doctor.Name
	}
	return ev, true
}

func doctorSummary(d *doctor.Doctor) *DoctorSummary {
	return &DoctorSummary{
		ID:              d.ID,
		Name:            d.Name,
		Specialization:  d.Specialization,
		ImageURL:        d.ImageURL,
		ConsultationFee: d.ConsultationFee,
	}
}

func patientSummary(u *user.User) *PatientSummary {
	return &PatientSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}
