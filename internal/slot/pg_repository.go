package slot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, doctor_id, date, time, start_minute, is_booked, is_blocked, appointment_id, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.Time,
		&s.StartMinute,
		&s.IsBooked,
		&s.IsBlocked,
		&s.AppointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgRepository) InsertMany(ctx context.Context, doctorID uuid.UUID, date time.Time, labels []Label) ([]Slot, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	texts := make([]string, len(labels))
	minutes := make([]int32, len(labels))
	for i, l := range labels {
		texts[i] = l.Text
		minutes[i] = int32(l.Minute)
	}

	rows, err := r.pool.Query(ctx, `
		INSERT INTO slots (id, doctor_id, date, time, start_minute, created_at, updated_at)
		SELECT gen_random_uuid(), $1, $2, t.label, t.minute, now(), now()
		FROM unnest($3::text[], $4::int[]) AS t(label, minute)
		ON CONFLICT (doctor_id, date, time) DO NOTHING
		RETURNING `+slotColumns,
		doctorID, date, texts, minutes)
	if err != nil {
		return nil, fmt.Errorf("insert slots: %w", err)
	}

	created, err := collectSlots(rows)
	if err != nil {
		return nil, fmt.Errorf("insert slots: %w", err)
	}
	sort.Slice(created, func(i, j int) bool { return created[i].StartMinute < created[j].StartMinute })
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1
		  AND date = $2
		  AND is_booked = false
		  AND is_blocked = false
		ORDER BY start_minute
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Slot, error) {
	where := []string{"doctor_id = $1"}
	args := []any{f.DoctorID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Date != nil {
		where = append(where, "date = "+arg(*f.Date))
	}
	if f.IsBooked != nil {
		where = append(where, "is_booked = "+arg(*f.IsBooked))
	}
	if f.IsBlocked != nil {
		where = append(where, "is_blocked = "+arg(*f.IsBlocked))
	}

	rows, err := r.pool.Query(ctx, `SELECT `+slotColumns+` FROM slots WHERE `+
		strings.Join(where, " AND ")+` ORDER BY date, start_minute`, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return collectSlots(rows)
}

const bookSQL = `
		UPDATE slots
		SET is_booked = true,
		    appointment_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = false
		  AND is_blocked = false
		RETURNING ` + slotColumns

const releaseForSQL = `
		UPDATE slots
		SET is_booked = false,
		    appointment_id = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND appointment_id = $2`

const toggleBlockSQL = `
		UPDATE slots
		SET is_blocked = NOT is_blocked,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = false
		RETURNING ` + slotColumns

const deleteSQL = `DELETE FROM slots WHERE id = $1 AND is_booked = false`

// Book is the only path that sets is_booked; the WHERE clause makes two
// concurrent calls for one slot resolve to a single winner.
func (r *PgRepository) Book(ctx context.Context, id, appointmentID uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, bookSQL, id, appointmentID)

	s, err := scanSlot(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("book slot: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reason := current.Unavailable(); reason != nil {
		return nil, reason
	}
	return nil, ErrSlotBooked
}

func (r *PgRepository) Release(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = false,
		    appointment_id = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// ReleaseFor frees the slot only while it still points at appointmentID.
func (r *PgRepository) ReleaseFor(ctx context.Context, id, appointmentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, releaseForSQL, id, appointmentID)
	if err != nil {
		return false, fmt.Errorf("release slot for appointment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) ToggleBlock(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, toggleBlockSQL, id)

	s, err := scanSlot(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("toggle slot block: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrBlockBookedSlot
}

func (r *PgRepository) BlockDates(ctx context.Context, doctorID uuid.UUID, dates []time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET is_blocked = true,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND date = ANY($2::date[])
		  AND is_booked = false
		  AND is_blocked = false
	`, doctorID, dates)
	if err != nil {
		return 0, fmt.Errorf("block dates: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteSQL, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrDeleteBookedSlot
}
