package doctor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/dental-clinic-booking/internal/db"
)

const doctorColumns = `id, name, email, phone, specialization, experience, qualification, image_url,
	available_days, consultation_fee::float8, about, is_active, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.Phone,
		&d.Specialization,
		&d.Experience,
		&d.Qualification,
		&d.ImageURL,
		&d.AvailableDays,
		&d.ConsultationFee,
		&d.About,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, name, email, phone, specialization, experience, qualification,
		                     image_url, available_days, consultation_fee, about, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING created_at, updated_at
	`, d.ID, d.Name, d.Email, d.Phone, d.Specialization, d.Experience, d.Qualification,
		d.ImageURL, d.AvailableDays, d.ConsultationFee, d.About, d.IsActive,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "doctors_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Doctor, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Specialization != "" {
		where = append(where, "specialization = "+arg(f.Specialization))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, "(name ILIKE "+p+" OR specialization ILIKE "+p+")")
	}
	if f.IsActive != nil {
		where = append(where, "is_active = "+arg(*f.IsActive))
	}

	q := `SELECT ` + doctorColumns + ` FROM doctors`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PgRepository) Update(ctx context.Context, d *Doctor) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET name = $2, email = $3, phone = $4, specialization = $5, experience = $6,
		    qualification = $7, image_url = $8, available_days = $9, consultation_fee = $10,
		    about = $11, is_active = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, d.ID, d.Name, d.Email, d.Phone, d.Specialization, d.Experience, d.Qualification,
		d.ImageURL, d.AvailableDays, d.ConsultationFee, d.About, d.IsActive,
	).Scan(&d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDoctorNotFound
		}
		if db.IsUniqueViolation(err, "doctors_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("update doctor: %w", err)
	}
	return nil
}

// Delete removes the doctor; slots go with it through the foreign key.
func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}
