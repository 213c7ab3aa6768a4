package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thenoetrevino/tablero/internal/auth"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
)

const (
	maxNameLength     = 100
	minPasswordLength = 8
)

// Service defines all account-related operations
type Service interface {
	// Read operations
	GetUser(ctx context.Context, id int) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Authentication
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (int, error)

	// Write operations
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*models.User, error)
}

// RegisterRequest encapsulates data for creating an account
type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}

// UpdateProfileRequest encapsulates a partial profile update
type UpdateProfileRequest struct {
	UserID   int
	Name     *string
	Password *string
}

// LoginResult is a fresh session for a user
type LoginResult struct {
	auth.Session
	User *models.User `json:"user"`
}

type service struct {
	store      *database.Store
	tokens     *auth.TokenManager
	bcryptCost int
	now        func() time.Time
}

// NewService creates a user service. bcryptCost 0 uses the bcrypt default.
func NewService(store *database.Store, tokens *auth.TokenManager, bcryptCost int) Service {
	return &service{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether a normalised address looks deliverable enough
func ValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func (s *service) GetUser(ctx context.Context, id int) (*models.User, error) {
	if id <= 0 {
		return nil, ErrInvalidUserID
	}
	u, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.store.ListUsers(ctx)
}

// Register creates an account with a bcrypt-hashed password
func (s *service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	u, err := s.store.CreateUser(ctx, email, name, hash, s.now())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// Login checks credentials and issues a session token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: session, User: u}, nil
}

// Authenticate resolves a session token to an existing user id
func (s *service) Authenticate(ctx context.Context, token string) (int, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, auth.ErrInvalidToken
		}
		return 0, err
	}
	return userID, nil
}

// UpdateProfile changes the display name and/or password
func (s *service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*models.User, error) {
	existing, err := s.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	name := existing.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
	}

	hash := existing.PasswordHash
	if req.Password != nil {
		if utf8.RuneCountInString(*req.Password) < minPasswordLength {
			return nil, ErrPasswordTooShort
		}
		if hash, err = auth.HashPassword(*req.Password, s.bcryptCost); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateUser(ctx, req.UserID, name, hash, s.now()); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetUser(ctx, req.UserID)
}

func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}
