package storage

import (
	"context"
	"time"

	"github.com/iudanet/tradeguard/internal/models"
)

// SessionStorage defines interface for bearer session persistence.
// Sessions are addressed by SHA256 of the token, the token itself is never stored.
type SessionStorage interface {
	// SaveSession stores a new session
	SaveSession(ctx context.Context, session *models.Session) error

	// GetSession retrieves session by exact token hash
	// Returns ErrSessionNotFound if session doesn't exist
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)

	// TouchSession updates last activity of an active session
	// Returns ErrSessionNotFound if session doesn't exist or is inactive
	TouchSession(ctx context.Context, tokenHash string, at time.Time) error

	// RevokeSession marks session inactive
	// Returns ErrSessionNotFound if session doesn't exist
	RevokeSession(ctx context.Context, tokenHash string) error

	// RevokeUserSessions marks all sessions of a user inactive
	// Returns number of revoked sessions
	RevokeUserSessions(ctx context.Context, userID string) (int, error)

	// DeleteExpiredSessions removes sessions expired before now and inactive ones
	// Returns number of deleted sessions
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}
