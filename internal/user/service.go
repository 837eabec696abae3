package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

const minPasswordLength = 6

var ErrInvalidCredentials = apperr.Unauthorized("invalid credentials")

type TokenIssuer interface {
	Issue(userID uuid.UUID, role string) (string, error)
}

// Session is what register and login hand back to the client.
type Session struct {
	User  *User
	Token string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type Service struct {
	repo     Repository
	tokens   TokenIssuer
	logger   zerolog.Logger
	hashCost int
}

func NewService(repo Repository, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		logger:   logger.With().Str("component", "accounts").Logger(),
		hashCost: bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(in RegisterInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.Validation("name is required")
	}
	if len(name) < 2 || len(name) > 100 {
		return apperr.Validation("name must be between 2 and 100 characters")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperr.Validation("please provide a valid email")
	}
	if len(in.Password) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

// Register creates a patient account. Only the seed path creates admins.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	u, err := s.create(ctx, in, RolePatient)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) create(ctx context.Context, in RegisterInput, role Role) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", string(role)).Msg("account created")
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// AdminLogin is Login restricted to administrative accounts.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, apperr.Forbidden("access denied, admin only")
	}
	return s.session(u)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return nil, apperr.Unauthorized("your account has been deactivated, please contact support")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) session(u *User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile changes name and phone; empty values keep the current ones.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*User, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = current.Name
	}
	if phone = strings.TrimSpace(phone); phone == "" {
		phone = current.Phone
	}
	return s.repo.UpdateProfile(ctx, id, name, phone)
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return apperr.Unauthorized("current password is incorrect")
	}
	if len(next) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

// EnsureAdmin creates the admin account if no user holds the email yet.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return false, fmt.Errorf("look up admin: %w", err)
	}

	in := RegisterInput{Name: name, Email: email, Password: password}
	if err := validateRegistration(in); err != nil {
		return false, err
	}
	if _, err := s.create(ctx, in, RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
