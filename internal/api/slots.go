package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/calendar"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
)

func createSlotsHandler(svc SlotService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotsRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		doctorID, err := requiredUUID(req.DoctorID, "doctor")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		if req.Date == "" {
			rs.error(w, r, apperr.Validation("date is required"))
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			rs.error(w, r, err)
			return
		}

		created, err := svc.CreateSlots(r.Context(), doctorID, date, req.TimeSlots)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		n := len(created)
		writeEnvelope(w, http.StatusCreated, envelope{
			Success: true,
			Message: fmt.Sprintf("%d slots created successfully", n),
			Count:   &n,
			Data:    toSlotResponses(created),
		})
	}
}

func bulkCreateSlotsHandler(svc SlotService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkCreateSlotsRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		doctorID, err := requiredUUID(req.DoctorID, "doctor")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		if req.StartDate == "" || req.EndDate == "" || len(req.TimeSlots) == 0 {
			rs.error(w, r, apperr.Validation("please provide startDate, endDate, and timeSlots"))
			return
		}
		start, err := parseDate(req.StartDate)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		end, err := parseDate(req.EndDate)
		if err != nil {
			rs.error(w, r, err)
			return
		}

		n, err := svc.BulkCreate(r.Context(), slot.BulkInput{
			DoctorID:    doctorID,
			Start:       start,
			End:         end,
			Times:       req.TimeSlots,
			ExcludeDays: req.ExcludeDays,
		})
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusCreated, envelope{
			Success: true,
			Message: fmt.Sprintf("%d slots created successfully", n),
			Count:   &n,
		})
	}
}

func availableSlotsHandler(svc SlotService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuidParam(r, "doctorId")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		raw := r.URL.Query().Get("date")
		if raw == "" {
			rs.error(w, r, apperr.Validation("please provide a date"))
			return
		}
		date, err := parseDate(raw)
		if err != nil {
			rs.error(w, r, err)
			return
		}

		slots, err := svc.ListAvailable(r.Context(), doctorID, date)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeList(w, toSlotResponses(slots))
	}
}

func doctorSlotsHandler(svc SlotService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuidParam(r, "doctorId")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		q := r.URL.Query()
		f := slot.Filter{DoctorID: doctorID}
		if f.Date, err = optionalDate(q.Get("date")); err != nil {
			rs.error(w, r, err)
			return
		}
		if f.IsBooked, err = optionalBool(q.Get("isBooked"), "isBooked"); err != nil {
			rs.error(w, r, err)
			return
		}
		if f.IsBlocked, err = optionalBool(q.Get("isBlocked"), "isBlocked"); err != nil {
			rs.error(w, r, err)
			return
		}

		slots, err := svc.ListForDoctor(r.Context(), f)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeList(w, toSlotResponses(slots))
	}
}

func generateTimesHandler(svc SlotService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeList(w, svc.DefaultTimes())
	}
}

func toggleBlockHandler(svc SlotService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		s, err := svc.ToggleBlock(r.Context(), id)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		msg := "slot unblocked successfully"
		if s.IsBlocked {
			msg = "slot blocked successfully"
		}
		writeMessage(w, http.StatusOK, msg, toSlotResponse(s))
	}
}

func blockDatesHandler(svc SlotService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockDatesRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		doctorID, err := requiredUUID(req.DoctorID, "doctor")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		dates := make([]time.Time, 0, len(req.Dates))
		for _, raw := range req.Dates {
			d, err := calendar.ParseDate(raw)
			if err != nil {
				rs.error(w, r, apperr.Validation(fmt.Sprintf("invalid date %q", raw)))
				return
			}
			dates = append(dates, d)
		}

		n, err := svc.BlockDates(r.Context(), doctorID, dates)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeEnvelope(w, http.StatusOK, envelope{
			Success: true,
			Message: fmt.Sprintf("%d slots blocked successfully", n),
			Count:   &n,
		})
	}
}

func deleteSlotHandler(svc SlotService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "slot deleted successfully", nil)
	}
}
