package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/appointment"
	"github.com/hackgods/dental-clinic-booking/internal/auth"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

type AppointmentService interface {
	Book(ctx context.Context, in appointment.BookInput) (*appointment.Detail, error)
	Confirm(ctx context.Context, actor appointment.Actor, id uuid.UUID, notes string) (*appointment.Detail, error)
	Cancel(ctx context.Context, actor appointment.Actor, id uuid.UUID, reason string) (*appointment.Detail, error)
	Complete(ctx context.Context, actor appointment.Actor, id uuid.UUID, notes string) (*appointment.Detail, error)
	Delete(ctx context.Context, actor appointment.Actor, id uuid.UUID) error
	Get(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Detail, error)
	ListMine(ctx context.Context, patientID uuid.UUID, status appointment.Status, upcoming bool) ([]appointment.Detail, error)
	ListAll(ctx context.Context, f appointment.Filter) ([]appointment.Detail, error)
	Stats(ctx context.Context, from, to *time.Time) (*appointment.Stats, error)
}

type SlotService interface {
	CreateSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, times []string) ([]slot.Slot, error)
	BulkCreate(ctx context.Context, in slot.BulkInput) (int, error)
	ListAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]slot.Slot, error)
	ListForDoctor(ctx context.Context, f slot.Filter) ([]slot.Slot, error)
	ToggleBlock(ctx context.Context, id uuid.UUID) (*slot.Slot, error)
	BlockDates(ctx context.Context, doctorID uuid.UUID, dates []time.Time) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DefaultTimes() []string
}

type DoctorService interface {
	Specializations() []string
	List(ctx context.Context, f doctor.Filter) ([]doctor.Doctor, error)
	Get(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	Create(ctx context.Context, d *doctor.Doctor) (*doctor.Doctor, error)
	Update(ctx context.Context, id uuid.UUID, p doctor.Patch) (*doctor.Doctor, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (*doctor.Stats, error)
}

// AccountLookup is what the bearer middleware needs to load the caller.
type AccountLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type AccountService interface {
	AccountLookup
	Register(ctx context.Context, in user.RegisterInput) (*user.Session, error)
	Login(ctx context.Context, email, password string) (*user.Session, error)
	AdminLogin(ctx context.Context, email, password string) (*user.Session, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*user.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error
}

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Slots        SlotService
	Doctors      DoctorService
	Accounts     AccountService
	Tokens       TokenVerifier
	Health       *HealthHandler
	Logger       zerolog.Logger
	APIPrefix    string
	Dev          bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	rs := &responder{logger: cfg.Logger, dev: cfg.Dev}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.error(w, r, apperr.NotFound("route not found"))
	})

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	authn := Authenticate(cfg.Tokens, cfg.Accounts, rs)
	adminOnly := RequireRole(rs, user.RoleAdmin)
	patientOnly := RequireRole(rs, user.RolePatient)

	api := chi.NewRouter()
	api.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.error(w, r, apperr.NotFound("route not found"))
	})

	api.Route("/auth", func(r chi.Router) {
		r.Post("/register", registerHandler(cfg.Accounts, rs))
		r.Post("/login", loginHandler(cfg.Accounts, rs))
		r.Post("/admin/login", adminLoginHandler(cfg.Accounts, rs))

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/me", meHandler())
			r.Put("/profile", updateProfileHandler(cfg.Accounts, rs))
			r.Put("/change-password", changePasswordHandler(cfg.Accounts, rs))
		})
	})

	api.Route("/doctors", func(r chi.Router) {
		r.Get("/", listDoctorsHandler(cfg.Doctors, rs))
		r.Get("/specializations/list", specializationsHandler(cfg.Doctors))
		r.Get("/{id}", getDoctorHandler(cfg.Doctors, rs))

		r.Group(func(r chi.Router) {
			r.Use(authn, adminOnly)
			r.Post("/", createDoctorHandler(cfg.Doctors, rs))
			r.Put("/{id}", updateDoctorHandler(cfg.Doctors, rs))
			r.Delete("/{id}", deleteDoctorHandler(cfg.Doctors, rs))
			r.Get("/{id}/stats", doctorStatsHandler(cfg.Doctors, rs))
		})
	})

	api.Route("/slots", func(r chi.Router) {
		r.Get("/available/{doctorId}", availableSlotsHandler(cfg.Slots, rs))

		r.Group(func(r chi.Router) {
			r.Use(authn, adminOnly)
			r.Post("/", createSlotsHandler(cfg.Slots, rs))
			r.Post("/bulk-create", bulkCreateSlotsHandler(cfg.Slots, rs))
			r.Post("/block-dates", blockDatesHandler(cfg.Slots, rs))
			r.Get("/generate-times", generateTimesHandler(cfg.Slots))
			r.Get("/doctor/{doctorId}", doctorSlotsHandler(cfg.Slots, rs))
			r.Put("/{id}/block", toggleBlockHandler(cfg.Slots, rs))
			r.Delete("/{id}", deleteSlotHandler(cfg.Slots, rs))
		})
	})

	api.Route("/appointments", func(r chi.Router) {
		r.Use(authn)

		r.With(patientOnly).Post("/", createAppointmentHandler(cfg.Appointments, rs))
		r.With(patientOnly).Get("/my-appointments", myAppointmentsHandler(cfg.Appointments, rs))
		r.With(adminOnly).Get("/", listAppointmentsHandler(cfg.Appointments, rs))
		r.With(adminOnly).Get("/stats/overview", appointmentStatsHandler(cfg.Appointments, rs))

		r.Get("/{id}", getAppointmentHandler(cfg.Appointments, rs))
		r.Put("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments, rs))
		r.With(adminOnly).Put("/{id}/confirm", confirmAppointmentHandler(cfg.Appointments, rs))
		r.With(adminOnly).Put("/{id}/complete", completeAppointmentHandler(cfg.Appointments, rs))
		r.With(adminOnly).Delete("/{id}", deleteAppointmentHandler(cfg.Appointments, rs))
	})

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/"
	}
	r.Mount(prefix, api)

	return r
}
