package doctor

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

var (
	ErrDoctorNotFound = apperr.NotFound("doctor not found")
	ErrEmailTaken     = apperr.Conflict("doctor with this email already exists")
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, f Filter) ([]Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AppointmentLedger is the view of the appointment store the directory
// needs for stats and delete guards.
type AppointmentLedger interface {
	CountUpcomingForDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
	CountByStatusForDoctor(ctx context.Context, doctorID uuid.UUID) (AppointmentCounts, error)
}
