package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/appointment"
	"github.com/hackgods/dental-clinic-booking/internal/calendar"
)

func createAppointmentHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}

		doctorID, err := requiredUUID(req.DoctorID, "doctor")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		slotID, err := requiredUUID(req.SlotID, "slot")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		if strings.TrimSpace(req.Date) == "" {
			rs.error(w, r, apperr.Validation("date is required"))
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		if strings.TrimSpace(req.Time) == "" {
			rs.error(w, r, apperr.Validation("time is required"))
			return
		}

		actor := actorFrom(r)
		detail, err := svc.Book(r.Context(), appointment.BookInput{
			PatientID: actor.UserID,
			DoctorID:  doctorID,
			SlotID:    slotID,
			Date:      &date,
			Time:      req.Time,
			Reason:    strings.TrimSpace(req.Reason),
		})
		if err != nil {
			rs.error(w, r, err)
			return
		}

		writeMessage(w, http.StatusCreated, "appointment booked successfully", toAppointmentResponse(detail))
	}
}

func myAppointmentsHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status, err := optionalStatus(q.Get("status"))
		if err != nil {
			rs.error(w, r, err)
			return
		}
		upcoming, err := optionalBool(q.Get("upcoming"), "upcoming")
		if err != nil {
			rs.error(w, r, err)
			return
		}

		details, err := svc.ListMine(r.Context(), actorFrom(r).UserID, status, upcoming != nil && *upcoming)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeList(w, toAppointmentResponses(details))
	}
}

func listAppointmentsHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.Filter
		var err error

		if f.Status, err = optionalStatus(q.Get("status")); err != nil {
			rs.error(w, r, err)
			return
		}
		if f.DoctorID, err = optionalUUID(q.Get("doctorId"), "doctorId"); err != nil {
			rs.error(w, r, err)
			return
		}
		if f.PatientID, err = optionalUUID(q.Get("patientId"), "patientId"); err != nil {
			rs.error(w, r, err)
			return
		}
		if f.Date, err = optionalDate(q.Get("date")); err != nil {
			rs.error(w, r, err)
			return
		}

		details, err := svc.ListAll(r.Context(), f)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeList(w, toAppointmentResponses(details))
	}
}

func getAppointmentHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		detail, err := svc.Get(r.Context(), actorFrom(r), id)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func confirmAppointmentHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		var req NotesRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}

		detail, err := svc.Confirm(r.Context(), actorFrom(r), id, strings.TrimSpace(req.Notes))
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "appointment confirmed successfully", toAppointmentResponse(detail))
	}
}

func cancelAppointmentHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		var req CancelRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}

		detail, err := svc.Cancel(r.Context(), actorFrom(r), id, strings.TrimSpace(req.CancellationReason))
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "appointment cancelled successfully", toAppointmentResponse(detail))
	}
}

func completeAppointmentHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		var req NotesRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}

		detail, err := svc.Complete(r.Context(), actorFrom(r), id, strings.TrimSpace(req.Notes))
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "appointment marked as completed", toAppointmentResponse(detail))
	}
}

func deleteAppointmentHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		if err := svc.Delete(r.Context(), actorFrom(r), id); err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "appointment deleted successfully", nil)
	}
}

func appointmentStatsHandler(svc AppointmentService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err := optionalDate(q.Get("startDate"))
		if err != nil {
			rs.error(w, r, err)
			return
		}
		to, err := optionalDate(q.Get("endDate"))
		if err != nil {
			rs.error(w, r, err)
			return
		}
		if to != nil {
			// endDate names a whole day
			end := to.Add(24*time.Hour - time.Nanosecond)
			to = &end
		}

		st, err := svc.Stats(r.Context(), from, to)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toAppointmentStatsResponse(st))
	}
}

// actorFrom must only run behind Authenticate.
func actorFrom(r *http.Request) appointment.Actor {
	u, ok := currentUser(r.Context())
	if !ok {
		return appointment.Actor{}
	}
	return appointment.Actor{UserID: u.ID, Role: u.Role}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid " + name)
	}
	return id, nil
}

func requiredUUID(v, what string) (uuid.UUID, error) {
	if strings.TrimSpace(v) == "" {
		return uuid.Nil, apperr.Validation(what + " id is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid " + what + " id")
	}
	return id, nil
}

func optionalUUID(v, name string) (*uuid.UUID, error) {
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperr.Validation("invalid " + name)
	}
	return &id, nil
}

func parseDate(v string) (time.Time, error) {
	d, err := calendar.ParseDate(v)
	if err != nil {
		return time.Time{}, apperr.Validation("please provide a valid date (YYYY-MM-DD)")
	}
	return d, nil
}

func optionalDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := parseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalStatus(v string) (appointment.Status, error) {
	if v == "" {
		return "", nil
	}
	return appointment.ParseStatus(v)
}

func optionalBool(v, name string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation("invalid " + name + ", expected true or false")
	}
	return &b, nil
}
