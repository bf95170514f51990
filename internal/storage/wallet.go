package storage

import (
	"context"
	"time"

	"github.com/iudanet/tradeguard/internal/models"
)

// WalletStorage defines interface for wallet ciphertext persistence.
// One wallet per owner.
type WalletStorage interface {
	// SaveWallet creates or replaces the owner's wallet (last write wins)
	SaveWallet(ctx context.Context, wallet *models.Wallet) error

	// GetWallet retrieves the owner's wallet
	// Returns ErrWalletNotFound if owner has no wallet
	GetWallet(ctx context.Context, ownerID string) (*models.Wallet, error)

	// TouchWallet updates last used timestamp
	// Returns ErrWalletNotFound if owner has no wallet
	TouchWallet(ctx context.Context, ownerID string, at time.Time) error
}
