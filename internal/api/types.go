package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-booking/internal/appointment"
	"github.com/hackgods/dental-clinic-booking/internal/calendar"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

type CreateAppointmentRequest struct {
	DoctorID string `json:"doctorId"`
	SlotID   string `json:"slotId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Reason   string `json:"reason"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type CancelRequest struct {
	CancellationReason string `json:"cancellationReason"`
}

type CreateSlotsRequest struct {
	DoctorID  string   `json:"doctorId"`
	Date      string   `json:"date"`
	TimeSlots []string `json:"timeSlots"`
}

type BulkCreateSlotsRequest struct {
	DoctorID    string   `json:"doctorId"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	TimeSlots   []string `json:"timeSlots"`
	ExcludeDays []string `json:"excludeDays"`
}

type BlockDatesRequest struct {
	DoctorID string   `json:"doctorId"`
	Dates    []string `json:"dates"`
}

// DoctorRequest serves both create and update; omitted fields stay nil.
type DoctorRequest struct {
	Name            *string  `json:"name"`
	Email           *string  `json:"email"`
	Phone           *string  `json:"phone"`
	Specialization  *string  `json:"specialization"`
	Experience      *int     `json:"experience"`
	Qualification   *string  `json:"qualification"`
	Image           *string  `json:"image"`
	AvailableDays   []string `json:"availableDays"`
	ConsultationFee *float64 `json:"consultationFee"`
	About           *string  `json:"about"`
	IsActive        *bool    `json:"isActive"`
}

func (r DoctorRequest) doctor() *doctor.Doctor {
	d := &doctor.Doctor{
		Name:           deref(r.Name),
		Email:          deref(r.Email),
		Phone:          deref(r.Phone),
		Specialization: deref(r.Specialization),
		Qualification:  deref(r.Qualification),
		ImageURL:       deref(r.Image),
		AvailableDays:  r.AvailableDays,
		About:          deref(r.About),
	}
	if r.Experience != nil {
		d.Experience = *r.Experience
	}
	if r.ConsultationFee != nil {
		d.ConsultationFee = *r.ConsultationFee
	}
	return d
}

func (r DoctorRequest) patch() doctor.Patch {
	return doctor.Patch{
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		Specialization:  r.Specialization,
		Experience:      r.Experience,
		Qualification:   r.Qualification,
		ImageURL:        r.Image,
		AvailableDays:   r.AvailableDays,
		ConsultationFee: r.ConsultationFee,
		About:           r.About,
		IsActive:        r.IsActive,
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

type SessionResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

type DoctorResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Specialization  string    `json:"specialization"`
	Experience      int       `json:"experience"`
	Qualification   string    `json:"qualification"`
	Image           string    `json:"image"`
	AvailableDays   []string  `json:"availableDays"`
	ConsultationFee float64   `json:"consultationFee"`
	About           string    `json:"about,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toDoctorResponse(d *doctor.Doctor) DoctorResponse {
	days := d.AvailableDays
	if days == nil {
		days = []string{}
	}
	return DoctorResponse{
		ID:              d.ID,
		Name:            d.Name,
		Email:           d.Email,
		Phone:           d.Phone,
		Specialization:  d.Specialization,
		Experience:      d.Experience,
		Qualification:   d.Qualification,
		Image:           d.ImageURL,
		AvailableDays:   days,
		ConsultationFee: d.ConsultationFee,
		About:           d.About,
		IsActive:        d.IsActive,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type AppointmentCountsResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	NoShow    int `json:"noShow"`
}

type DoctorStatsResponse struct {
	Doctor       DoctorResponse            `json:"doctor"`
	Appointments AppointmentCountsResponse `json:"appointments"`
	Upcoming     int                       `json:"upcoming"`
}

func toDoctorStatsResponse(st *doctor.Stats) DoctorStatsResponse {
	c := st.Appointments
	counts := AppointmentCountsResponse{
		Total:     c.Total,
		Pending:   c.Pending,
		Confirmed: c.Confirmed,
		Completed: c.Completed,
		Cancelled: c.Cancelled,
		NoShow:    c.NoShow,
	}
	return DoctorStatsResponse{Doctor: toDoctorResponse(st.Doctor), Appointments: counts, Upcoming: st.Upcoming}
}

type SlotResponse struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctorId"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	IsBooked      bool       `json:"isBooked"`
	IsBlocked     bool       `json:"isBlocked"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
}

func toSlotResponse(s *slot.Slot) SlotResponse {
	return SlotResponse{
		ID:            s.ID,
		DoctorID:      s.DoctorID,
		Date:          calendar.Format(s.Date),
		Time:          s.Time,
		IsBooked:      s.IsBooked,
		IsBlocked:     s.IsBlocked,
		AppointmentID: s.AppointmentID,
	}
}

func toSlotResponses(slots []slot.Slot) []SlotResponse {
	out := make([]SlotResponse, len(slots))
	for i := range slots {
		out[i] = toSlotResponse(&slots[i])
	}
	return out
}

type DoctorSummaryResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	Image           string    `json:"image"`
	ConsultationFee float64   `json:"consultationFee"`
}

type PatientSummaryResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID               `json:"id"`
	PatientID          uuid.UUID               `json:"patientId"`
	Patient            *PatientSummaryResponse `json:"patient,omitempty"`
	DoctorID           *uuid.UUID              `json:"doctorId"`
	Doctor             *DoctorSummaryResponse  `json:"doctor,omitempty"`
	SlotID             *uuid.UUID              `json:"slotId"`
	Date               string                  `json:"date"`
	Time               string                  `json:"time"`
	Status             string                  `json:"status"`
	Reason             string                  `json:"reason,omitempty"`
	Notes              string                  `json:"notes,omitempty"`
	CancelledBy        string                  `json:"cancelledBy,omitempty"`
	CancellationReason string                  `json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time              `json:"cancelledAt,omitempty"`
	ConfirmedAt        *time.Time              `json:"confirmedAt,omitempty"`
	CompletedAt        *time.Time              `json:"completedAt,omitempty"`
	CreatedAt          time.Time               `json:"createdAt"`
	UpdatedAt          time.Time               `json:"updatedAt"`
}

func toAppointmentResponse(d *appointment.Detail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 d.ID,
		PatientID:          d.PatientID,
		DoctorID:           d.DoctorID,
		SlotID:             d.SlotID,
		Date:               calendar.Format(d.Date),
		Time:               d.Time,
		Status:             string(d.Status),
		Reason:             d.Reason,
		Notes:              d.Notes,
		CancelledBy:        string(d.CancelledBy),
		CancellationReason: d.CancellationReason,
		CancelledAt:        d.CancelledAt,
		ConfirmedAt:        d.ConfirmedAt,
		CompletedAt:        d.CompletedAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if p := d.Patient; p != nil {
		resp.Patient = &PatientSummaryResponse{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone}
	}
	if doc := d.Doctor; doc != nil {
		resp.Doctor = &DoctorSummaryResponse{
			ID:              doc.ID,
			Name:            doc.Name,
			Specialization:  doc.Specialization,
			Image:           doc.ImageURL,
			ConsultationFee: doc.ConsultationFee,
		}
	}
	return resp
}

func toAppointmentResponses(details []appointment.Detail) []AppointmentResponse {
	out := make([]AppointmentResponse, len(details))
	for i := range details {
		out[i] = toAppointmentResponse(&details[i])
	}
	return out
}

type AppointmentStatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	Today    int            `json:"today"`
	Upcoming int            `json:"upcoming"`
}

func toAppointmentStatsResponse(st *appointment.Stats) AppointmentStatsResponse {
	by := make(map[string]int, len(st.ByStatus))
	for k, v := range st.ByStatus {
		by[string(k)] = v
	}
	return AppointmentStatsResponse{Total: st.Total, ByStatus: by, Today: st.Today, Upcoming: st.Upcoming}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
