package slot

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Slot struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	Date          time.Time // calendar day, UTC midnight
	Time          string    // canonical label, "09:00 AM"
	StartMinute   int       // minutes since midnight, derived from Time
	IsBooked      bool
	IsBlocked     bool
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Available reports whether the slot can take a booking.
func (s *Slot) Available() bool {
	return !s.IsBooked && !s.IsBlocked
}

// Unavailable explains why a slot refused a booking.
func (s *Slot) Unavailable() error {
	if s.IsBooked {
		return ErrSlotBooked
	}
	if s.IsBlocked {
		return ErrSlotBlocked
	}
	return nil
}

// SameTime reports whether label names the slot's time, ignoring
// formatting differences such as a missing leading zero.
func (s *Slot) SameTime(label string) bool {
	l, err := ParseTimeLabel(label)
	if err != nil {
		return strings.EqualFold(strings.TrimSpace(label), s.Time)
	}
	return l.Text == s.Time
}

// Filter narrows the admin listing of a doctor's slots.
type Filter struct {
	DoctorID  uuid.UUID
	Date      *time.Time
	IsBooked  *bool
	IsBlocked *bool
}
