package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

func TestWalletStorage_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	wallet := &models.Wallet{
		OwnerID:             "owner-1",
		Address:             "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		Chain:               models.ChainEthereum,
		PublicKey:           "04abcd",
		EncryptedPrivateKey: []byte{9, 8, 7},
		CreatedAt:           created,
	}
	require.NoError(t, s.SaveWallet(ctx, wallet))

	got, err := s.GetWallet(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.Address, got.Address)
	assert.Equal(t, models.ChainEthereum, got.Chain)
	assert.Equal(t, wallet.EncryptedPrivateKey, got.EncryptedPrivateKey)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.LastUsed)

	_, err = s.GetWallet(ctx, "owner-2")
	assert.ErrorIs(t, err, storage.ErrWalletNotFound)
}

func TestWalletStorage_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	first := &models.Wallet{OwnerID: "o", Address: "0x01", Chain: models.ChainEthereum, PublicKey: "p1",
		EncryptedPrivateKey: []byte{1}, CreatedAt: time.Now()}
	second := &models.Wallet{OwnerID: "o", Address: "0x02", Chain: models.ChainEthereum, PublicKey: "p2",
		EncryptedPrivateKey: []byte{2}, CreatedAt: time.Now()}

	require.NoError(t, s.SaveWallet(ctx, first))
	require.NoError(t, s.SaveWallet(ctx, second))

	got, err := s.GetWallet(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, "0x02", got.Address)
	assert.Equal(t, []byte{2}, got.EncryptedPrivateKey)

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM wallets WHERE owner_id = 'o'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWalletStorage_TouchWallet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.SaveWallet(ctx, &models.Wallet{OwnerID: "o", Address: "0x01", Chain: models.ChainEthereum,
		PublicKey: "p", EncryptedPrivateKey: []byte{1}, CreatedAt: time.Now()}))

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.TouchWallet(ctx, "o", at))

	got, err := s.GetWallet(ctx, "o")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsed)
	assert.True(t, at.Equal(*got.LastUsed))

	assert.ErrorIs(t, s.TouchWallet(ctx, "missing", at), storage.ErrWalletNotFound)
}
