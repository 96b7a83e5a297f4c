package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/store"
)

func newAuthService(t *testing.T, name string) (*Service, *store.SQLiteStore) {
	t.Helper()
	dbPath := name + ".db"
	t.Cleanup(func() { os.Remove(dbPath) })

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewService(s, "test-secret", 24*time.Hour, 100000, zerolog.Nop()), s
}

func TestSignupCreatesUserAndWallet(t *testing.T) {
	svc, s := newAuthService(t, "test_auth_signup")
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupRequest{Username: "priya", Email: "Priya@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if user.Email != "priya@example.com" {
		t.Errorf("Email not normalized: %s", user.Email)
	}
	if user.PasswordHash == "secret1" || user.PasswordHash == "" {
		t.Error("Password not hashed")
	}

	wallet, err := s.GetWallet(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if wallet == nil || wallet.Balance != 100000 {
		t.Errorf("Expected funded wallet, got %+v", wallet)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newAuthService(t, "test_auth_validation")
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignupRequest
	}{
		{"short username", SignupRequest{Username: "ab", Email: "a@b.com", Password: "secret1"}},
		{"bad email", SignupRequest{Username: "valid", Email: "not-an-email", Password: "secret1"}},
		{"short password", SignupRequest{Username: "valid", Email: "a@b.com", Password: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Signup(ctx, tt.req); !apperrors.Is(err, apperrors.ErrInputValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestSignupDuplicates(t *testing.T) {
	svc, _ := newAuthService(t, "test_auth_dup")
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupRequest{Username: "kiran", Email: "kiran@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	if _, err := svc.Signup(ctx, SignupRequest{Username: "other", Email: "kiran@example.com", Password: "secret1"}); !apperrors.Is(err, apperrors.ErrDuplicateEmail) {
		t.Errorf("Expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := svc.Signup(ctx, SignupRequest{Username: "kiran", Email: "other@example.com", Password: "secret1"}); !apperrors.Is(err, apperrors.ErrDuplicateUsername) {
		t.Errorf("Expected ErrDuplicateUsername, got %v", err)
	}
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	svc, _ := newAuthService(t, "test_auth_login")
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupRequest{Username: "dev", Email: "dev@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	// Login by username
	got, token, err := svc.Login(ctx, "dev", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.ID != user.ID || token == "" {
		t.Errorf("Unexpected login result: %+v, token %q", got, token)
	}

	// Login by email
	if _, _, err := svc.Login(ctx, "dev@example.com", "secret1"); err != nil {
		t.Errorf("Login by email failed: %v", err)
	}

	// Wrong password and unknown user both come back as invalid credentials
	if _, _, err := svc.Login(ctx, "dev", "wrong"); !apperrors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost", "secret1"); !apperrors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Username != "dev" {
		t.Errorf("Unexpected claims: %+v", claims)
	}

	if _, err := svc.VerifyToken(token + "tampered"); err == nil {
		t.Error("Expected error for tampered token")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, s := newAuthService(t, "test_auth_expiry")
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupRequest{Username: "late", Email: "late@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	// Service with a negative TTL issues already-expired tokens
	expired := NewService(s, "test-secret", time.Nanosecond, 100000, zerolog.Nop())
	token, err := expired.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := svc.VerifyToken(token); !apperrors.Is(err, apperrors.ErrSessionExpired) {
		t.Errorf("Expected ErrSessionExpired, got %v", err)
	}
}
