package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

// SaveSession stores a new session
func (s *Storage) SaveSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token_hash, user_id, ip_address, mode, is_active, created_at, expires_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.TokenHash,
		session.UserID,
		session.IPAddress,
		session.Mode.String(),
		session.IsActive,
		toMillis(session.CreatedAt),
		toMillis(session.ExpiresAt),
		toMillis(session.LastActivity),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSession retrieves session by token hash
func (s *Storage) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `
		SELECT token_hash, user_id, ip_address, mode, is_active, created_at, expires_at, last_activity
		FROM sessions
		WHERE token_hash = ?
	`

	session := &models.Session{}
	var (
		mode                               string
		createdAt, expiresAt, lastActivity int64
	)

	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.IPAddress,
		&mode,
		&session.IsActive,
		&createdAt,
		&expiresAt,
		&lastActivity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.Mode, err = models.ParseSessionMode(mode)
	if err != nil {
		return nil, fmt.Errorf("stored session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	session.LastActivity = fromMillis(lastActivity)

	return session, nil
}

// TouchSession updates last activity of an active session
func (s *Storage) TouchSession(ctx context.Context, tokenHash string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE token_hash = ? AND is_active = 1`,
		toMillis(at), tokenHash,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return affected(result, storage.ErrSessionNotFound)
}

// RevokeSession marks session inactive
func (s *Storage) RevokeSession(ctx context.Context, tokenHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return affected(result, storage.ErrSessionNotFound)
}

// RevokeUserSessions marks all active sessions of a user inactive
func (s *Storage) RevokeUserSessions(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// DeleteExpiredSessions removes expired and revoked sessions
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ? OR is_active = 0`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}
