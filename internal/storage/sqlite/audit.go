package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/tradeguard/internal/models"
)

// AppendAudit stores a record and sets its ID
func (s *Storage) AppendAudit(ctx context.Context, record *models.AuditRecord) error {
	details, err := json.Marshal(record.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, user_id, ip_hash, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		record.Action, record.UserID, record.IPHash, string(details), toMillis(record.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit id: %w", err)
	}
	record.ID = id

	return nil
}

// ListAudit returns the newest records of a user first
func (s *Storage) ListAudit(ctx context.Context, userID string, limit int) ([]*models.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, user_id, ip_hash, details, created_at
		FROM audit_log
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*models.AuditRecord

	for rows.Next() {
		record := &models.AuditRecord{}
		var (
			details   string
			createdAt int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.Action,
			&record.UserID,
			&record.IPHash,
			&details,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &record.Details); err != nil {
			return nil, fmt.Errorf("failed to decode audit details: %w", err)
		}
		record.Timestamp = fromMillis(createdAt)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
