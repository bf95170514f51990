package storage

import (
	"context"

	"github.com/iudanet/tradeguard/internal/models"
)

// AuditStorage is append-only: there is no update or delete.
type AuditStorage interface {
	// AppendAudit stores a record and sets its ID
	AppendAudit(ctx context.Context, record *models.AuditRecord) error

	// ListAudit returns the newest records of a user first, at most limit
	ListAudit(ctx context.Context, userID string, limit int) ([]*models.AuditRecord, error)
}
