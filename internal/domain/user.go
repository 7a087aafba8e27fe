package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateIdentity is returned when a username or email is already registered.
	ErrDuplicateIdentity = errors.New("username or email already registered")
	// ErrInvalidCredentials is returned when an email/password pair does not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput is returned when required registration or login fields are missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserNotFound is returned when a user id cannot be resolved.
	ErrUserNotFound = errors.New("user not found")
)

// User is a registered account. Users are never updated or deleted.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// UserRepository captures persistence operations for users.
// Finders return (nil, nil) when no row matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}
