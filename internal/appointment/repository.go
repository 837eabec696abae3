package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment not found")
	ErrDuplicateBooking    = apperr.Conflict("you already have an appointment with this doctor on this date")
	ErrStatusChanged       = apperr.InvalidState("appointment status changed, please reload and retry")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Create inserts a pending appointment. A second active appointment
	// for the same patient, doctor and day fails with ErrDuplicateBooking.
	Create(ctx context.Context, a *Appointment) error
	HasActive(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time) (bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, f Filter) ([]Detail, error)

	// Transition applies t only while the row is still in t.From and
	// returns ErrStatusChanged otherwise.
	Transition(ctx context.Context, id uuid.UUID, t Transition) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Stats(ctx context.Context, from, to, today time.Time) (*Stats, error)

	doctor.AppointmentLedger
}
