package api

import (
	"context"
	"net/http"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

func registerHandler(svc AccountService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		sess, err := svc.Register(r.Context(), user.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Phone:    req.Phone,
		})
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusCreated, "user registered successfully", toSessionResponse(sess))
	}
}

func loginHandler(svc AccountService, rs *responder) http.HandlerFunc {
	return sessionHandler(svc.Login, rs)
}

func adminLoginHandler(svc AccountService, rs *responder) http.HandlerFunc {
	return sessionHandler(svc.AdminLogin, rs)
}

func sessionHandler(login func(ctx context.Context, email, password string) (*user.Session, error), rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		if req.Email == "" || req.Password == "" {
			rs.error(w, r, apperr.Validation("please provide email and password"))
			return
		}
		sess, err := login(r.Context(), req.Email, req.Password)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "login successful", toSessionResponse(sess))
	}
}

func meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := currentUser(r.Context())
		writeData(w, http.StatusOK, toUserResponse(u))
	}
}

func updateProfileHandler(svc AccountService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		u, _ := currentUser(r.Context())
		updated, err := svc.UpdateProfile(r.Context(), u.ID, req.Name, req.Phone)
		if err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "profile updated successfully", toUserResponse(updated))
	}
}

func changePasswordHandler(svc AccountService, rs *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChangePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			rs.error(w, r, err)
			return
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			rs.error(w, r, apperr.Validation("please provide current and new password"))
			return
		}
		u, _ := currentUser(r.Context())
		if err := svc.ChangePassword(r.Context(), u.ID, req.CurrentPassword, req.NewPassword); err != nil {
			rs.error(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "password changed successfully", nil)
	}
}

func toSessionResponse(s *user.Session) SessionResponse {
	return SessionResponse{User: toUserResponse(s.User), Token: s.Token}
}
