package audit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

// IPHashLen - длина усеченного хеша IP в hex символах
const IPHashLen = 16

// Ключи в details, из которых берется IP, если он не передан явно
var ipKeys = []string{"ip_address", "client_ip", "ip"}

// Config - зависимости Logger
type Config struct {
	Now       func() time.Time
	Logger    *zap.Logger
	Sanitizer *Sanitizer
}

// Logger writes audit records. A nil store only emits log lines.
type Logger struct {
	store     storage.AuditStorage
	now       func() time.Time
	logger    *zap.Logger
	sanitizer *Sanitizer
}

// NewLogger creates an audit logger.
func NewLogger(store storage.AuditStorage, cfg Config) *Logger {
	l := &Logger{
		store:     store,
		now:       cfg.Now,
		logger:    cfg.Logger,
		sanitizer: cfg.Sanitizer,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.sanitizer == nil {
		l.sanitizer = defaultSanitizer
	}
	return l
}

// Record builds, persists and logs an audit record. The raw IP is never
// stored: only its truncated SHA256 digest.
func (l *Logger) Record(ctx context.Context, action, userID, clientIP string, details map[string]any) (*models.AuditRecord, error) {
	if action == "" {
		return nil, fmt.Errorf("audit action cannot be empty")
	}

	ip, rest := extractIP(clientIP, details)

	record := &models.AuditRecord{
		Timestamp: l.now().UTC(),
		Action:    action,
		UserID:    userID,
		Details:   l.sanitizer.Sanitize(rest),
	}
	if record.Details == nil {
		record.Details = map[string]any{}
	}
	if ip != "" {
		hash, err := crypto.TruncatedDigest(ip, IPHashLen)
		if err != nil {
			return nil, fmt.Errorf("failed to hash client ip: %w", err)
		}
		record.IPHash = hash
	}

	if l.store != nil {
		if err := l.store.AppendAudit(ctx, record); err != nil {
			l.logger.Error("failed to append audit record", zap.String("action", action), zap.Error(err))
			return nil, fmt.Errorf("failed to append audit record: %w", err)
		}
	}

	l.logger.Info("audit",
		zap.String("action", record.Action),
		zap.String("user_id", record.UserID),
		zap.String("ip_hash", record.IPHash),
		zap.Any("details", record.Details),
	)

	return record, nil
}

// List returns the newest records of a user first.
func (l *Logger) List(ctx context.Context, userID string, limit int) ([]*models.AuditRecord, error) {
	if l.store == nil {
		return nil, nil
	}
	return l.store.ListAudit(ctx, userID, limit)
}

// extractIP убирает IP из details в любом случае, даже если он передан явно
func extractIP(clientIP string, details map[string]any) (string, map[string]any) {
	if details == nil {
		return clientIP, nil
	}

	ip := clientIP
	for _, k := range ipKeys {
		if s, ok := details[k].(string); ok && ip == "" {
			ip = s
		}
	}

	rest := make(map[string]any, len(details))
	for k, v := range details {
		if !slices.Contains(ipKeys, k) {
			rest[k] = v
		}
	}

	return ip, rest
}
