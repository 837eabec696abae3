package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
)

var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// Terminal states accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

func ParseStatus(v string) (Status, error) {
	switch s := Status(v); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return s, nil
	}
	return "", apperr.Validation("invalid status " + v)
}

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID uuid.UUID
	Role   user.Role
}

func (a Actor) IsAdmin() bool { return a.Role == user.RoleAdmin }

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DoctorID           *uuid.UUID // nil once the doctor is deleted
	SlotID             *uuid.UUID // nil once the slot is deleted
	Date               time.Time
	Time               string
	Status             Status
	Reason             string
	Notes              string
	CancelledBy        user.Role // empty unless cancelled
	CancellationReason string
	CancelledAt        *time.Time
	ConfirmedAt        *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type DoctorSummary struct {
	ID              uuid.UUID
	Name            string
	Specialization  string
	ImageURL        string
	ConsultationFee float64
}

type PatientSummary struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Detail is an appointment with the doctor and patient attached.
type Detail struct {
	Appointment
	Doctor  *DoctorSummary
	Patient *PatientSummary
}

type Filter struct {
	PatientID  *uuid.UUID
	DoctorID   *uuid.UUID
	Status     Status
	Date       *time.Time
	FromDate   *time.Time
	ActiveOnly bool
}

// Transition describes one conditional status change.
type Transition struct {
	From               Status
	To                 Status
	At                 time.Time
	Notes              *string
	CancelledBy        *user.Role
	CancellationReason *string
}

type Stats struct {
	Total    int
	ByStatus map[Status]int
	Today    int
	Upcoming int
}
