package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// NonceSize - размер nonce для AES-GCM (12 bytes стандартный размер)
	NonceSize = 12
	// KeySize - размер master key (AES-256)
	KeySize = 32
	// TagSize - размер authentication tag GCM
	TagSize = 16
)

// ErrDecrypt is returned for any authentication failure.
var ErrDecrypt = errors.New("failed to decrypt: authentication failed or corrupted data")

// Encrypt шифрует данные с использованием AES-256-GCM.
// Формат результата: nonce (12 bytes) + ciphertext + auth_tag (16 bytes).
// additionalData аутентифицируется, но не шифруется (например, owner id),
// расшифровка с другим additionalData завершится ошибкой.
func Encrypt(plaintext, key, additionalData []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext cannot be empty")
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Генерируем случайный nonce
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal дописывает ciphertext + tag сразу после nonce
	return aesGCM.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Decrypt дешифрует данные, зашифрованные с помощью Encrypt.
// Любое изменение шифротекста, nonce, тега или additionalData приводит к ErrDecrypt.
func Decrypt(encrypted, key, additionalData []byte) ([]byte, error) {
	if len(encrypted) < NonceSize+TagSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := encrypted[:NonceSize]
	ciphertext := encrypted[NonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecrypt
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aesGCM, nil
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	clear(b)
}
