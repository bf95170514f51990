package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// TokenBytes - 256 бит энтропии для session token
const TokenBytes = 32

// HashSecret хеширует пароль или API secret с помощью bcrypt.
// cost должен лежать в [bcrypt.MinCost, bcrypt.MaxCost].
func HashSecret(secret string, cost int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost must be in [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// CompareSecret проверяет secret против bcrypt хеша.
// Возвращает false при любом несовпадении, включая поврежденный хеш.
func CompareSecret(hash, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}

// SignHMAC возвращает hex(HMAC-SHA256(payload, secret))
func SignHMAC(payload, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC сравнивает подпись в постоянном времени.
// Некорректный hex считается несовпадением.
func VerifyHMAC(payload, secret []byte, signatureHex string) bool {
	got, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), got)
}

// NewToken генерирует URL-safe токен из TokenBytes случайных байт
// и возвращает его вместе с SHA256 хешем для хранения
func NewToken() (token, hash string, err error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate random token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken returns hex(SHA256(token)).
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ErrEmptyInput is returned by TruncatedDigest for empty values.
var ErrEmptyInput = errors.New("input cannot be empty")

// TruncatedDigest returns the first n hex characters of SHA256(value).
func TruncatedDigest(value string, n int) (string, error) {
	if value == "" {
		return "", ErrEmptyInput
	}
	sum := sha256.Sum256([]byte(value))
	digest := hex.EncodeToString(sum[:])
	if n > 0 && n < len(digest) {
		digest = digest[:n]
	}
	return digest, nil
}
