package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

// SaveWallet creates or replaces the owner's wallet
func (s *Storage) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	// Повторное создание перезаписывает кошелек (last write wins)
	query := `
		INSERT INTO wallets (owner_id, address, chain, public_key, encrypted_private_key, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			address = excluded.address,
			chain = excluded.chain,
			public_key = excluded.public_key,
			encrypted_private_key = excluded.encrypted_private_key,
			created_at = excluded.created_at,
			last_used = excluded.last_used
	`

	_, err := s.db.ExecContext(ctx, query,
		wallet.OwnerID,
		wallet.Address,
		string(wallet.Chain),
		wallet.PublicKey,
		wallet.EncryptedPrivateKey,
		toMillis(wallet.CreatedAt),
		nullMillis(wallet.LastUsed),
	)
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}

	return nil
}

// GetWallet retrieves the owner's wallet
func (s *Storage) GetWallet(ctx context.Context, ownerID string) (*models.Wallet, error) {
	query := `
		SELECT owner_id, address, chain, public_key, encrypted_private_key, created_at, last_used
		FROM wallets
		WHERE owner_id = ?
	`

	wallet := &models.Wallet{}
	var (
		chain     string
		createdAt int64
		lastUsed  sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(
		&wallet.OwnerID,
		&wallet.Address,
		&chain,
		&wallet.PublicKey,
		&wallet.EncryptedPrivateKey,
		&createdAt,
		&lastUsed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	wallet.Chain = models.Chain(chain)
	wallet.CreatedAt = fromMillis(createdAt)
	wallet.LastUsed = fromNullMillis(lastUsed)

	return wallet, nil
}

// TouchWallet updates last used timestamp
func (s *Storage) TouchWallet(ctx context.Context, ownerID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE wallets SET last_used = ? WHERE owner_id = ?`, toMillis(at), ownerID)
	if err != nil {
		return fmt.Errorf("failed to touch wallet: %w", err)
	}

	return affected(result, storage.ErrWalletNotFound)
}
