// Package notify carries appointment notifications from the booking flow
// to the mail worker. Dispatch never blocks or fails the caller.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBooked    EventType = "appointment.booked"
	EventConfirmed EventType = "appointment.confirmed"
	EventCancelled EventType = "appointment.cancelled"
	EventReminder  EventType = "appointment.reminder"
)

// Event is the queued message. Date is YYYY-MM-DD, Time the slot label.
type Event struct {
	Type          EventType `json:"type"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	To            string    `json:"to"`
	PatientName   string    `json:"patientName"`
	DoctorName    string    `json:"doctorName"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (e Event) Validate() error {
	switch e.Type {
	case EventBooked, EventConfirmed, EventCancelled, EventReminder:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.To == "" {
		return fmt.Errorf("event %s for %s has no recipient", e.Type, e.AppointmentID)
	}
	return nil
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, e.Validate()
}
