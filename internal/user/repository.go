package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

var (
	ErrUserNotFound = apperr.NotFound("user not found")
	ErrEmailTaken   = apperr.Conflict("user already exists with this email")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}
