package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

// SaveWallet creates or replaces the owner's wallet
func (s *Storage) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketWallets)
		if bucket == nil {
			return fmt.Errorf("wallets bucket not found")
		}

		data, err := json.Marshal(wallet)
		if err != nil {
			return fmt.Errorf("failed to marshal wallet: %w", err)
		}

		// Ключ - owner id, Put перезаписывает существующее значение
		if err := bucket.Put([]byte(wallet.OwnerID), data); err != nil {
			return fmt.Errorf("failed to save wallet: %w", err)
		}

		return nil
	})
}

// GetWallet retrieves the owner's wallet
func (s *Storage) GetWallet(ctx context.Context, ownerID string) (*models.Wallet, error) {
	var wallet *models.Wallet

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		wallet, err = getWallet(tx, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return wallet, nil
}

// TouchWallet updates last used timestamp
func (s *Storage) TouchWallet(ctx context.Context, ownerID string, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		wallet, err := getWallet(tx, ownerID)
		if err != nil {
			return err
		}

		wallet.LastUsed = &at

		data, err := json.Marshal(wallet)
		if err != nil {
			return fmt.Errorf("failed to marshal wallet: %w", err)
		}

		return tx.Bucket(bucketWallets).Put([]byte(ownerID), data)
	})
}

func getWallet(tx *bbolt.Tx, ownerID string) (*models.Wallet, error) {
	bucket := tx.Bucket(bucketWallets)
	if bucket == nil {
		return nil, fmt.Errorf("wallets bucket not found")
	}

	data := bucket.Get([]byte(ownerID))
	if data == nil {
		return nil, storage.ErrWalletNotFound
	}

	wallet := &models.Wallet{}
	if err := json.Unmarshal(data, wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return wallet, nil
}
