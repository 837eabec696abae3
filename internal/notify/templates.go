package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/hackgods/dental-clinic-booking/internal/calendar"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

const layout = `<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <div style="background: {{.Color}}; color: white; padding: 20px; text-align: center;">
        <h1>Dental Clinic</h1>
        {{if .Banner}}<h2>{{.Banner}}</h2>{{end}}
      </div>
      <div style="background: #f9f9f9; padding: 30px;">
        <h2>Hello {{.PatientName}},</h2>
        <p>{{.Lead}}</p>
        <div style="background: white; padding: 20px; margin: 20px 0; border-left: 4px solid {{.Color}};">
          <h3>Appointment Details:</h3>
          <p><strong>Doctor:</strong> Dr. {{.DoctorName}}</p>
          <p><strong>Date:</strong> {{.Date}}</p>
          <p><strong>Time:</strong> {{.Time}}</p>
          <p><strong>Status:</strong> {{.StatusText}}</p>
        </div>
        {{range .Notes}}<p>{{.}}</p>{{end}}
      </div>
      <div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666;">
        <p>This is an automated message, please do not reply to this email.</p>
      </div>
    </div>
  </body>
</html>`

var mailTemplate = template.Must(template.New("mail").Parse(layout))

type view struct {
	Color       string
	Banner      string
	PatientName string
	DoctorName  string
	Lead        string
	Date        string
	Time        string
	StatusText  string
	Notes       []string
}

// displayDate renders 2026-04-07 as "Tuesday, April 7, 2026".
func displayDate(s string) string {
	d, err := calendar.ParseDate(s)
	if err != nil {
		return s
	}
	return d.Format("Monday, January 2, 2006")
}

// Render builds the email for an event.
func Render(ev Event) (Message, error) {
	if err := ev.Validate(); err != nil {
		return Message{}, err
	}

	v := view{
		PatientName: ev.PatientName,
		DoctorName:  strings.TrimPrefix(ev.DoctorName, "Dr. "),
		Date:        displayDate(ev.Date),
		Time:        ev.Time,
	}
	var subject string

	switch ev.Type {
	case EventBooked:
		subject = "Appointment Confirmation - Dental Clinic"
		v.Color = "#0066cc"
		v.Lead = "Your appointment has been successfully booked!"
		v.StatusText = "Pending Confirmation"
		v.Notes = []string{
			"Your appointment is currently pending. You will receive another email once the clinic confirms it.",
			"Please arrive 10 minutes before your scheduled time.",
			"If you need to cancel or reschedule, please contact us at least 24 hours in advance.",
		}
	case EventConfirmed:
		subject = "Appointment CONFIRMED - Dental Clinic"
		v.Color = "#28a745"
		v.Banner = "Appointment CONFIRMED"
		v.Lead = "Your appointment has been CONFIRMED."
		v.StatusText = "CONFIRMED"
		v.Notes = []string{"We look forward to seeing you. Please arrive 10 minutes early."}
	case EventCancelled:
		subject = "Appointment CANCELLED - Dental Clinic"
		v.Color = "#dc3545"
		v.Banner = "Appointment CANCELLED"
		v.Lead = "Your appointment has been CANCELLED."
		v.StatusText = "CANCELLED"
		v.Notes = []string{"If you would like to book another appointment, please visit our website."}
	case EventReminder:
		subject = "Appointment Reminder - Dental Clinic"
		v.Color = "#0066cc"
		v.Banner = "Appointment Reminder"
		v.Lead = "This is a reminder of your appointment tomorrow."
		v.StatusText = strings.ToUpper(ev.Status)
	}

	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, v); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", ev.Type, err)
	}
	return Message{To: ev.To, Subject: subject, HTML: buf.String()}, nil
}

// mimeMessage formats msg as an RFC 5322 message with an HTML body.
func mimeMessage(from string, msg Message, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}
