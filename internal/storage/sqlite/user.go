package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

const userColumns = `id, email, password_hash, api_key, api_secret_hash, api_secret_enc,
		permissions, is_active, created_at, last_login`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	perms, err := json.Marshal(user.Permissions.Strings())
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.APIKey,
		user.APISecretHash,
		user.APISecretEnc,
		string(perms),
		user.IsActive,
		toMillis(user.CreatedAt),
		nullMillis(user.LastLogin),
	)

	if err != nil {
		// Уникальность email обеспечивается ограничением таблицы
		switch {
		case isUniqueViolation(err, "users.email"):
			return storage.ErrUserAlreadyExists
		case isUniqueViolation(err, "users.api_key"):
			return storage.ErrAPIKeyAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

func (s *Storage) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var (
		perms     string
		createdAt int64
		lastLogin sql.NullInt64
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.APIKey,
		&user.APISecretHash,
		&user.APISecretEnc,
		&perms,
		&user.IsActive,
		&createdAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var raw []string
	if err := json.Unmarshal([]byte(perms), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	user.Permissions = make(models.Permissions, 0, len(raw))
	for _, p := range raw {
		perm, err := models.ParsePermission(p)
		if err != nil {
			return nil, fmt.Errorf("stored permissions: %w", err)
		}
		user.Permissions = append(user.Permissions, perm)
	}

	user.CreatedAt = fromMillis(createdAt)
	user.LastLogin = fromNullMillis(lastLogin)

	return user, nil
}

// UpdatePermissions replaces the permission set of a user
func (s *Storage) UpdatePermissions(ctx context.Context, userID string, perms models.Permissions) error {
	encoded, err := json.Marshal(perms.Strings())
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET permissions = ? WHERE id = ?`, string(encoded), userID)
	if err != nil {
		return fmt.Errorf("failed to update permissions: %w", err)
	}

	return affected(result, storage.ErrUserNotFound)
}

// DeactivateUser clears the active flag
func (s *Storage) DeactivateUser(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = 0 WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	return affected(result, storage.ErrUserNotFound)
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, toMillis(lastLogin), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return affected(result, storage.ErrUserNotFound)
}
