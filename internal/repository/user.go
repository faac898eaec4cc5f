package repository

import (
	"context"
	"errors"

	"auth-api/internal/domain"
)

// ErrEmailTaken is returned by Create when the email is already stored.
var ErrEmailTaken = errors.New("email already exists")

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	// Create assigns ID and CreatedAt to user and stores it. Uniqueness of the
	// email is enforced by the storage layer and reported as ErrEmailTaken.
	Create(ctx context.Context, user *domain.User) error
	// FindByEmail returns the user with exactly this email, or nil when absent.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
