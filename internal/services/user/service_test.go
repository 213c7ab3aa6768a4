package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thenoetrevino/tablero/internal/auth"
	"github.com/thenoetrevino/tablero/internal/testutil"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func newTestService(t *testing.T) Service {
	t.Helper()
	store := testutil.SetupTestStore(t)
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: "test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create token manager: %v", err)
	}
	return NewService(store, tokens, bcrypt.MinCost)
}

// ============================================================================
// TEST CASES
// ============================================================================

func TestRegister_NormalisesEmail(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	u, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "  Ada@Example.COM ",
		Name:     "Ada",
		Password: "lovelace1",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("Expected normalised email, got %q", u.Email)
	}
	if u.PasswordHash == "lovelace1" {
		t.Error("Expected password to be hashed")
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)

	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr error
	}{
		{"missing at", RegisterRequest{Email: "ada.example.com", Name: "Ada", Password: "password1"}, ErrInvalidEmail},
		{"empty name", RegisterRequest{Email: "ada@example.com", Name: "  ", Password: "password1"}, ErrEmptyName},
		{"long name", RegisterRequest{Email: "ada@example.com", Name: strings.Repeat("a", 101), Password: "password1"}, ErrNameTooLong},
		{"short password", RegisterRequest{Email: "ada@example.com", Name: "Ada", Password: "short"}, ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	req := RegisterRequest{Email: "ada@example.com", Name: "Ada", Password: "password1"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("First register failed: %v", err)
	}
	req.Email = "ADA@example.com"
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestLogin_AndAuthenticate(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Name: "Ada", Password: "password1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := svc.Login(ctx, "ADA@example.com", "password1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.User.ID != u.ID || res.Token == "" {
		t.Fatalf("Unexpected login result %+v", res)
	}

	userID, err := svc.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if userID != u.ID {
		t.Errorf("Expected user %d, got %d", u.ID, userID)
	}

	if _, err := svc.Login(ctx, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()
	svc := newTestService(t)
	ctx := context.Background()

	u, _ := svc.Register(ctx, RegisterRequest{Email: "ada@example.com", Name: "Ada", Password: "password1"})

	newName := "Ada Lovelace"
	newPassword := "analytical"
	updated, err := svc.UpdateProfile(ctx, UpdateProfileRequest{UserID: u.ID, Name: &newName, Password: &newPassword})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Name != newName {
		t.Errorf("Expected name %q, got %q", newName, updated.Name)
	}
	if _, err := svc.Login(ctx, "ada@example.com", "analytical"); err != nil {
		t.Errorf("Expected new password to work, got %v", err)
	}

	empty := ""
	if _, err := svc.UpdateProfile(ctx, UpdateProfileRequest{UserID: u.ID, Name: &empty}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, UpdateProfileRequest{UserID: 999, Name: &newName}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
