package validation

import (
	"fmt"
	"net/mail"
	"strings"
)

const (
	// MinPasswordLen минимальная длина пароля аккаунта
	MinPasswordLen = 12
	// MaxPasswordLen - bcrypt учитывает только первые 72 байта
	MaxPasswordLen = 72
	// MaxAPISecretLen - секрет биржи тоже хешируется bcrypt
	MaxAPISecretLen = 72
	// MaxEmailLen максимальная длина email (RFC 5321)
	MaxEmailLen = 254
)

// NormalizeEmail trims spaces and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail проверяет, что email является одиночным адресом без display name
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return fmt.Errorf("email %q is not a valid address", email)
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
// Минимум 12 символов, максимум 72 байта
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLen)
	}

	return nil
}

// ValidateAPICredentials checks the exchange key pair. The secret value is
// never included in the error.
func ValidateAPICredentials(apiKey, apiSecret string) error {
	if apiKey == "" || apiSecret == "" {
		return fmt.Errorf("api key and secret are required")
	}

	if len(apiSecret) > MaxAPISecretLen {
		return fmt.Errorf("api secret must not exceed %d bytes", MaxAPISecretLen)
	}

	return nil
}
