package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

var (
	ErrSlotNotFound      = apperr.NotFound("slot not found")
	ErrSlotBooked        = apperr.InvalidState("slot is already booked")
	ErrSlotBlocked       = apperr.InvalidState("slot is blocked")
	ErrBlockBookedSlot   = apperr.InvalidState("cannot block a booked slot")
	ErrDeleteBookedSlot  = apperr.InvalidState("cannot delete a booked slot")
	ErrPastDate          = apperr.Validation("cannot create slots for past dates")
	ErrDateRangeReversed = apperr.Validation("start date must be before end date")
	ErrDateRangeTooLong  = apperr.Validation(fmt.Sprintf("date range cannot exceed %d days", MaxBulkDays))
)

// MaxBulkDays caps how many calendar days one bulk create may span.
const MaxBulkDays = 366

type Repository interface {
	// InsertMany creates one slot per label for the day, skipping labels
	// that already exist, and returns only the new rows.
	InsertMany(ctx context.Context, doctorID uuid.UUID, date time.Time, labels []Label) ([]Slot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error)
	List(ctx context.Context, f Filter) ([]Slot, error)

	// Book links the slot to an appointment only if it is neither booked
	// nor blocked. It fails with ErrSlotBooked, ErrSlotBlocked or
	// ErrSlotNotFound otherwise.
	Book(ctx context.Context, id, appointmentID uuid.UUID) (*Slot, error)
	Release(ctx context.Context, id uuid.UUID) error
	// ReleaseFor frees the slot only if it is linked to appointmentID and
	// reports whether anything changed.
	ReleaseFor(ctx context.Context, id, appointmentID uuid.UUID) (bool, error)

	ToggleBlock(ctx context.Context, id uuid.UUID) (*Slot, error)
	BlockDates(ctx context.Context, doctorID uuid.UUID, dates []time.Time) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
