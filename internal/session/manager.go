// Package session issues and validates opaque bearer session tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/credentials"
	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/metrics"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

// DefaultTTL - время жизни сессии от момента выдачи
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalidCredentials is returned by Login for any authentication mismatch.
	ErrInvalidCredentials = credentials.ErrInvalidCredentials
	// ErrSessionExpiredOrInvalid - токен неизвестен, истек, отозван или аккаунт отключен
	ErrSessionExpiredOrInvalid = errors.New("session expired or invalid")
)

// Authenticator is the part of the credential store the manager relies on.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	RecordLogin(ctx context.Context, userID string) error
}

// Config holds optional manager settings.
type Config struct {
	Now     func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	TTL     time.Duration
}

// Manager is the Session Manager.
type Manager struct {
	auth     Authenticator
	sessions storage.SessionStorage
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics
	ttl      time.Duration
}

// NewManager creates a session manager.
func NewManager(auth Authenticator, sessions storage.SessionStorage, cfg Config) *Manager {
	m := &Manager{
		auth:     auth,
		sessions: sessions,
		now:      cfg.Now,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		ttl:      cfg.TTL,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	return m
}

// LoginRequest - входные данные логина
type LoginRequest struct {
	Email    string
	Password string
	ClientIP string
	Mode     models.SessionMode // 0 означает LIVE
}

// Login authenticates and issues a session. The returned session is the only
// place the plaintext token appears.
func (m *Manager) Login(ctx context.Context, req LoginRequest) (*models.Session, error) {
	mode := req.Mode
	if mode == 0 {
		mode = models.SessionModeLive
	}
	if mode != models.SessionModeLive && mode != models.SessionModeDemo {
		return nil, fmt.Errorf("unsupported session mode %s", mode)
	}

	user, err := m.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, credentials.ErrInvalidCredentials) {
			m.metrics.Login("invalid")
			m.logger.Warn("login rejected", zap.String("reason", "invalid_credentials"))
			return nil, ErrInvalidCredentials
		}
		m.metrics.Login("error")
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	token, tokenHash, err := crypto.NewToken()
	if err != nil {
		m.metrics.Login("error")
		return nil, err
	}

	now := m.now().UTC()
	sess := &models.Session{
		Token:        token,
		TokenHash:    tokenHash,
		UserID:       user.ID,
		IPAddress:    req.ClientIP,
		Mode:         mode,
		IsActive:     true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
		LastActivity: now,
	}

	if err := m.sessions.SaveSession(ctx, sess); err != nil {
		m.metrics.Login("error")
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if err := m.auth.RecordLogin(ctx, user.ID); err != nil {
		m.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	m.metrics.Login("success")
	m.logger.Info("session issued",
		zap.String("user_id", user.ID),
		zap.Stringer("mode", mode),
		zap.Time("expires_at", sess.ExpiresAt),
	)

	return sess, nil
}

// Validate resolves a bearer token into its user and session and refreshes
// last activity. Tokens are matched exactly by hash.
func (m *Manager) Validate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	if token == "" {
		m.metrics.SessionValidation("invalid")
		return nil, nil, ErrSessionExpiredOrInvalid
	}

	tokenHash := crypto.HashToken(token)

	sess, err := m.sessions.GetSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			m.metrics.SessionValidation("invalid")
			return nil, nil, ErrSessionExpiredOrInvalid
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	now := m.now().UTC()
	if !sess.IsActive || sess.Expired(now) {
		m.metrics.SessionValidation("expired")
		return nil, nil, ErrSessionExpiredOrInvalid
	}

	user, err := m.auth.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			m.metrics.SessionValidation("invalid")
			return nil, nil, ErrSessionExpiredOrInvalid
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		m.metrics.SessionValidation("inactive")
		return nil, nil, ErrSessionExpiredOrInvalid
	}

	if err := m.sessions.TouchSession(ctx, tokenHash, now); err != nil {
		// Отозвана между чтением и обновлением
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, nil, ErrSessionExpiredOrInvalid
		}
		return nil, nil, fmt.Errorf("failed to touch session: %w", err)
	}
	sess.LastActivity = now

	m.metrics.SessionValidation("valid")
	return user, sess, nil
}

// Revoke invalidates a single token.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrSessionExpiredOrInvalid
	}

	if err := m.sessions.RevokeSession(ctx, crypto.HashToken(token)); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrSessionExpiredOrInvalid
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	m.logger.Info("session revoked")
	return nil
}

// RevokeAll invalidates every session of a user.
func (m *Manager) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := m.sessions.RevokeUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	m.logger.Info("sessions revoked", zap.String("user_id", userID), zap.Int("count", n))
	return n, nil
}

// PurgeExpired deletes expired and revoked sessions.
func (m *Manager) PurgeExpired(ctx context.Context) (int, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	m.logger.Info("expired sessions purged", zap.Int("count", n))
	return n, nil
}
