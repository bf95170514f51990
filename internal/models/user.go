package models

import (
	"fmt"
	"slices"
	"time"
)

// Permission - право, выдаваемое аккаунту
type Permission string

const (
	PermissionRead     Permission = "read"
	PermissionTrade    Permission = "trade"
	PermissionWithdraw Permission = "withdraw"
)

// AllPermissions - полный набор прав, из которого можно выбирать подмножества
var AllPermissions = []Permission{PermissionRead, PermissionTrade, PermissionWithdraw}

// ParsePermission converts a raw string into a known Permission.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(raw)
	if !slices.Contains(AllPermissions, p) {
		return "", fmt.Errorf("unknown permission %q", raw)
	}
	return p, nil
}

// Permissions is a set of granted rights stored as an ordered list.
type Permissions []Permission

// Has reports whether p is granted.
func (ps Permissions) Has(p Permission) bool {
	return slices.Contains(ps, p)
}

// Strings returns the permissions as plain strings.
func (ps Permissions) Strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// User представляет аккаунт пользователя
type User struct {
	CreatedAt     time.Time   `json:"created_at"`
	LastLogin     *time.Time  `json:"last_login,omitempty"`
	ID            string      `json:"id"`             // UUID пользователя
	Email         string      `json:"email"`          // уникальный email (в нижнем регистре)
	PasswordHash  string      `json:"-"`              // bcrypt хеш пароля
	APIKey        string      `json:"api_key"`        // идентификатор ключа биржи
	APISecretHash string      `json:"-"`              // bcrypt хеш секрета биржи
	APISecretEnc  []byte      `json:"-"`              // секрет биржи, зашифрованный master key
	Permissions   Permissions `json:"permissions"`    // подмножество {read, trade, withdraw}
	IsActive      bool        `json:"is_active"`      // аккаунты не удаляются, только деактивируются
}

// ExchangeCredentials - открытые ключи биржи на время построения заголовков.
// Вызывающий обязан затереть APISecret после использования.
type ExchangeCredentials struct {
	APIKey    string `json:"api_key"`
	APISecret []byte `json:"-"`
}
