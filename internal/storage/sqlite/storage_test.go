package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tradeguard/internal/models"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	storage, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = storage.Close()
	}

	return storage, cleanup
}

func newTestUser(email string) *models.User {
	id := uuid.New().String()
	return &models.User{
		ID:            id,
		Email:         email,
		PasswordHash:  "$2a$04$hash",
		APIKey:        "key_" + id[:8],
		APISecretHash: "$2a$04$secret",
		APISecretEnc:  []byte{1, 2, 3},
		Permissions:   models.Permissions{models.PermissionRead, models.PermissionTrade},
		IsActive:      true,
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage) *models.User {
	t.Helper()
	user := newTestUser("user_" + uuid.New().String()[:8] + "@example.com")
	require.NoError(t, s.CreateUser(ctx, user))
	return user
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNew_MigrationsApplied(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	for _, table := range []string{"users", "sessions", "wallets", "audit_log"} {
		var name string
		err := s.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		require.Equal(t, table, name)
	}
}

func TestNew_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/tradeguard.db"

	s, err := New(ctx, path)
	require.NoError(t, err)
	user := createTestUser(t, ctx, s)
	require.NoError(t, s.Close())

	// Повторное открытие не должно повторно применять миграции
	s, err = New(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)
}
