package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/dental-clinic-booking/internal/db"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

const activeIndex = "appointments_active_per_day_key"

const appointmentColumns = `a.id, a.patient_id, a.doctor_id, a.slot_id, a.date, a.time, a.status, a.reason, a.notes,
	a.cancelled_by, a.cancellation_reason, a.cancelled_at, a.confirmed_at, a.completed_at, a.created_at, a.updated_at`

const detailColumns = appointmentColumns + `,
	d.id, d.name, d.specialization, d.image_url, d.consultation_fee::float8,
	u.id, u.name, u.email, u.phone`

const detailFrom = `
	FROM appointments a
	LEFT JOIN doctors d ON d.id = a.doctor_id
	LEFT JOIN users u ON u.id = a.patient_id
	LEFT JOIN slots s ON s.id = a.slot_id`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func appointmentDest(a *Appointment, cancelledBy **string) []any {
	return []any{
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.SlotID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Reason,
		&a.Notes,
		cancelledBy,
		&a.CancellationReason,
		&a.CancelledAt,
		&a.ConfirmedAt,
		&a.CompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelledBy *string

	if err := row.Scan(appointmentDest(&a, &cancelledBy)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if cancelledBy != nil {
		a.CancelledBy = user.Role(*cancelledBy)
	}
	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var (
		d           Detail
		cancelledBy *string

		docID        *uuid.UUID
		docName      *string
		docSpec      *string
		docImage     *string
		docFee       *float64
		patientID    *uuid.UUID
		patientName  *string
		patientEmail *string
		patientPhone *string
	)

	dest := appointmentDest(&d.Appointment, &cancelledBy)
	dest = append(dest, &docID, &docName, &docSpec, &docImage, &docFee,
		&patientID, &patientName, &patientEmail, &patientPhone)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if cancelledBy != nil {
		d.CancelledBy = user.Role(*cancelledBy)
	}

	if docID != nil {
		d.Doctor = &DoctorSummary{
			ID:              *docID,
			Name:            deref(docName),
			Specialization:  deref(docSpec),
			ImageURL:        deref(docImage),
			ConsultationFee: derefFloat(docFee),
		}
	}
	if patientID != nil {
		d.Patient = &PatientSummary{
			ID:    *patientID,
			Name:  deref(patientName),
			Email: deref(patientEmail),
			Phone: deref(patientPhone),
		}
	}
	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func nullableRole(r *user.Role) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments AS a (id, patient_id, doctor_id, slot_id, date, time, status, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.DoctorID, a.SlotID, a.Date, a.Time, a.Status, a.Reason, a.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err, activeIndex) {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) HasActive(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			  AND doctor_id = $2
			  AND date = $3
			  AND status IN ('pending', 'confirmed')
		)
	`, patientID, doctorID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active appointment: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+detailColumns+detailFrom+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Detail, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.PatientID != nil {
		where = append(where, "a.patient_id = "+arg(*f.PatientID))
	}
	if f.DoctorID != nil {
		where = append(where, "a.doctor_id = "+arg(*f.DoctorID))
	}
	if f.Status != "" {
		where = append(where, "a.status = "+arg(f.Status))
	}
	if f.Date != nil {
		where = append(where, "a.date = "+arg(*f.Date))
	}
	if f.FromDate != nil {
		where = append(where, "a.date >= "+arg(*f.FromDate))
	}
	if f.ActiveOnly {
		where = append(where, "a.status IN ('pending', 'confirmed')")
	}

	q := `SELECT ` + detailColumns + detailFrom
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY a.date DESC, COALESCE(s.start_minute, 0), a.created_at"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// transitionSQL only matches while the row is still in the From status, so
// of two racing transitions exactly one applies.
const transitionSQL = `
		UPDATE appointments AS a
		SET status = $2,
		    notes = COALESCE($4, a.notes),
		    confirmed_at = CASE WHEN $2 = 'confirmed' THEN COALESCE(a.confirmed_at, $5) ELSE a.confirmed_at END,
		    cancelled_at = CASE WHEN $2 = 'cancelled' THEN COALESCE(a.cancelled_at, $5) ELSE a.cancelled_at END,
		    completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(a.completed_at, $5) ELSE a.completed_at END,
		    cancelled_by = COALESCE($6, a.cancelled_by),
		    cancellation_reason = COALESCE($7, a.cancellation_reason),
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = $3
		RETURNING ` + appointmentColumns

func (r *PgRepository) Transition(ctx context.Context, id uuid.UUID, t Transition) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, transitionSQL,
		id, string(t.To), string(t.From), t.Notes, t.At, nullableRole(t.CancelledBy), t.CancellationReason)

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStatusChanged
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) Stats(ctx context.Context, from, to, today time.Time) (*Stats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY status
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointment stats: %w", err)
	}
	defer rows.Close()

	st := &Stats{ByStatus: make(map[Status]int)}
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		st.ByStatus[status] = n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE date = $1),
			count(*) FILTER (WHERE date >= $1 AND status IN ('pending', 'confirmed'))
		FROM appointments
	`, today).Scan(&st.Today, &st.Upcoming)
	if err != nil {
		return nil, fmt.Errorf("appointment day counts: %w", err)
	}
	return st, nil
}

func (r *PgRepository) CountUpcomingForDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND date >= CURRENT_DATE
		  AND status IN ('pending', 'confirmed')
	`, doctorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count upcoming appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) CountByStatusForDoctor(ctx context.Context, doctorID uuid.UUID) (doctor.AppointmentCounts, error) {
	var c doctor.AppointmentCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'confirmed'),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'cancelled'),
			count(*) FILTER (WHERE status = 'no-show')
		FROM appointments
		WHERE doctor_id = $1
	`, doctorID).Scan(&c.Total, &c.Pending, &c.Confirmed, &c.Completed, &c.Cancelled, &c.NoShow)
	if err != nil {
		return doctor.AppointmentCounts{}, fmt.Errorf("count doctor appointments: %w", err)
	}
	return c, nil
}
