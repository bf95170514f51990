package storage

import (
	"context"
	"time"

	"github.com/iudanet/tradeguard/internal/models"
)

// UserStorage defines interface for user account persistence.
// Accounts are never deleted, only deactivated.
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email already exists
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by normalized email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// UpdatePermissions replaces the permission set of a user
	UpdatePermissions(ctx context.Context, userID string, perms models.Permissions) error

	// DeactivateUser clears the active flag
	DeactivateUser(ctx context.Context, userID string) error

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error
}
