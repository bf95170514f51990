// Package boltdb stores wallet ciphertext in a single bbolt file.
package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tradeguard/internal/storage"
)

// BoltDB bucket names
var bucketWallets = []byte("wallets")

var _ storage.WalletStorage = (*Storage)(nil)

// Storage represents BoltDB wallet storage implementation
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// bbolt держит эксклюзивную блокировку файла, ждем не дольше таймаута
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketWallets); err != nil {
			return fmt.Errorf("failed to create wallets bucket: %w", err)
		}
		return nil
	})
}
