package doctor

import (
	"time"

	"github.com/google/uuid"
)

var Specializations = []string{
	"General Dentistry",
	"Orthodontics",
	"Periodontics",
	"Endodontics",
	"Prosthodontics",
	"Oral Surgery",
	"Pediatric Dentistry",
	"Cosmetic Dentistry",
}

var DefaultAvailableDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

const DefaultImageURL = "https://images.unsplash.com/photo-1612349317453-3ad32c4a0b7d?w=500&h=500&fit=crop"

type Doctor struct {
	ID              uuid.UUID
	Name            string
	Email           string
	Phone           string
	Specialization  string
	Experience      int
	Qualification   string
	ImageURL        string
	AvailableDays   []string
	ConsultationFee float64
	About           string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WorksOn reports whether the weekday name is one of the doctor's days.
func (d *Doctor) WorksOn(day string) bool {
	for _, v := range d.AvailableDays {
		if v == day {
			return true
		}
	}
	return false
}

type Filter struct {
	Specialization string
	Search         string
	IsActive       *bool
}

// Patch carries a partial update; nil fields are left alone.
type Patch struct {
	Name            *string
	Email           *string
	Phone           *string
	Specialization  *string
	Experience      *int
	Qualification   *string
	ImageURL        *string
	AvailableDays   []string
	ConsultationFee *float64
	About           *string
	IsActive        *bool
}

// AppointmentCounts summarizes one doctor's appointments by status.
type AppointmentCounts struct {
	Total     int
	Pending   int
	Confirmed int
	Completed int
	Cancelled int
	NoShow    int
}

type Stats struct {
	Doctor       *Doctor
	Appointments AppointmentCounts
	Upcoming     int
}
