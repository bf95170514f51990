package models

import (
	"fmt"
	"time"
)

// SessionMode определяет, как оркестратор поступает с подписанной заявкой
type SessionMode int

const (
	// SessionModeLive - заявка готовится к отправке на биржу
	SessionModeLive SessionMode = iota + 1
	// SessionModeDemo - те же проверки и подпись, но без заголовков биржи
	SessionModeDemo
)

// String returns the stored representation of the mode.
func (m SessionMode) String() string {
	switch m {
	case SessionModeLive:
		return "LIVE"
	case SessionModeDemo:
		return "DEMO"
	default:
		return fmt.Sprintf("SessionMode(%d)", int(m))
	}
}

// ParseSessionMode parses "LIVE" or "DEMO" (case-sensitive, as stored).
func ParseSessionMode(raw string) (SessionMode, error) {
	switch raw {
	case "LIVE":
		return SessionModeLive, nil
	case "DEMO":
		return SessionModeDemo, nil
	default:
		return 0, fmt.Errorf("unknown session mode %q", raw)
	}
}

// Session представляет выданную bearer-сессию
type Session struct {
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
	LastActivity time.Time   `json:"last_activity"`
	Token        string      `json:"-"` // открытый токен, известен только в момент выдачи
	TokenHash    string      `json:"-"` // SHA256(token), хранится в БД
	UserID       string      `json:"user_id"`
	IPAddress    string      `json:"ip_address"`
	Mode         SessionMode `json:"mode"`
	IsActive     bool        `json:"is_active"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
