package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService registers and verifies users. Session handling lives in the auth package.
type AuthService struct {
	users UserRepository
	cost  int
	now   func() time.Time
	newID func() string
}

// AuthOption configures optional AuthService behaviour.
type AuthOption func(*AuthService)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) AuthOption {
	return func(s *AuthService) {
		s.cost = cost
	}
}

// NewAuthService constructs an AuthService.
func NewAuthService(users UserRepository, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users: users,
		cost:  bcrypt.DefaultCost,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}

	existing, err := s.users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateIdentity
	}
	existing, err = s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateIdentity
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	// The unique constraints still guard against a concurrent registration.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies an email/password pair.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// User resolves a user id, typically the one stored in a session.
func (s *AuthService) User(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
