package api

import (
	"net/http"

	"github.com/hackgods/dental-clinic-booking/internal/doctor"
)

func listDoctorsHandler(svc DoctorService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := doctor.Filter{Specialization: q.Get("specialization"), Search: q.Get("search")}
		var err error
		if f.IsActive, err = optionalBool(q.Get("isActive"), "isActive"); err != nil {
			rs.error(w, r, err)
			return
		}

		doctors, err := svc.List(r.Context(), f)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		out := make([]DoctorResponse, len(doctors))
		for i := range doctors {
			out[i] = toDoctorResponse(&doctors[i])
		}
		writeList(w, out)
	}
}

func specializationsHandler(svc DoctorService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeList(w, svc.Specializations())
	}
}

func getDoctorHandler(svc DoctorService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		d, err := svc.Get(r.Context(), id)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toDoctorResponse(d))
	}
}

func createDoctorHandler(svc DoctorService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DoctorRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		d, err := svc.Create(r.Context(), req.doctor())
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusCreated, "doctor created successfully", toDoctorResponse(d))
	}
}

func updateDoctorHandler(svc DoctorService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		var req DoctorRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		d, err := svc.Update(r.Context(), id, req.patch())
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "doctor updated successfully", toDoctorResponse(d))
	}
}

func deleteDoctorHandler(svc DoctorService, rs *responder) http.HandlerFunc {
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
		writeMessage(w, http.StatusOK, "doctor deleted successfully", nil)
	}
}

func doctorStatsHandler(svc DoctorService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			rs.error(w, r, err)
			return
		}
		st, err := svc.Stats(r.Context(), id)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeData(w, http.StatusOK, toDoctorStatsResponse(st))
	}
}
