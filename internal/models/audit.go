package models

import "time"

// AuditRecord - неизменяемая запись аудита
type AuditRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"` // уже очищено от секретов
	Action    string         `json:"action"`
	UserID    string         `json:"user_id"`
	IPHash    string         `json:"ip_hash"` // усеченный SHA256 от IP, сырой IP не хранится
	ID        int64          `json:"id,omitempty"`
}
