package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id для деривации master key из парольной фразы
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// SaltSize - минимальный размер соли в байтах
	SaltSize = 16
)

// GenerateKey генерирует случайный 32-байтный master key
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveMasterKey деривирует master key хранилища из парольной фразы (Argon2id)
func DeriveMasterKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if len(salt) < SaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d", SaltSize, len(salt))
	}

	return argon2.IDKey([]byte(passphrase), salt, Argon2Time, Argon2Memory, Argon2Threads, KeySize), nil
}

// ParseMasterKey decodes a standard base64 master key and checks its length.
func ParseMasterKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	if len(key) != KeySize {
		Wipe(key)
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}
