package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenAuthority_RoundTrip(t *testing.T) {
	a := NewTokenAuthority("secret", time.Hour)
	id := uuid.New()

	tok, err := a.Issue(id, "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := a.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.UserID != id || got.Role != "admin" {
		t.Errorf("identity = %+v", got)
	}
}

func TestTokenAuthority_Expired(t *testing.T) {
	a := NewTokenAuthority("secret", time.Minute)
	issuedAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issuedAt }

	tok, err := a.Issue(uuid.New(), "patient")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	a.now = func() time.Time { return issuedAt.Add(time.Hour) }
	if _, err := a.Verify(tok); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenAuthority_WrongSecret(t *testing.T) {
	tok, err := NewTokenAuthority("one", time.Hour).Issue(uuid.New(), "patient")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := NewTokenAuthority("two", time.Hour).Verify(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenAuthority_Garbage(t *testing.T) {
	a := NewTokenAuthority("secret", time.Hour)
	if _, err := a.Verify("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
