// Package vault custodies per-owner signing keys. Private keys exist in
// plaintext only inside a signing or storing call; everything the vault
// returns is public data or a signature.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/metrics"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/storage"
)

var (
	// ErrInvalidKeyFormat - импортируемый ключ не является 32-байтным hex скаляром
	ErrInvalidKeyFormat = errors.New("invalid private key format")
	// ErrNoWalletForOwner - у владельца нет кошелька
	ErrNoWalletForOwner = errors.New("no wallet for owner")
	// ErrUnsupportedChain - для цепочки нет подписанта
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrVault - сбой хранилища или криптографии; подробности только в логе
	ErrVault = errors.New("wallet vault error")
)

// Config holds optional vault settings.
type Config struct {
	Signers map[models.Chain]Signer // по умолчанию только ethereum
	Now     func() time.Time
	Nonce   func() (uint64, error)
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Vault is the Wallet Vault.
type Vault struct {
	store     storage.WalletStorage
	signers   map[models.Chain]Signer
	now       func() time.Time
	nonce     func() (uint64, error)
	logger    *zap.Logger
	metrics   *metrics.Metrics
	masterKey []byte
	locks     keyedMutex
}

// New creates a vault. masterKey is copied.
func New(store storage.WalletStorage, masterKey []byte, cfg Config) (*Vault, error) {
	if len(masterKey) != crypto.KeySize {
		return nil, fmt.Errorf("master key must be %d bytes", crypto.KeySize)
	}

	v := &Vault{
		store:     store,
		signers:   cfg.Signers,
		now:       cfg.Now,
		nonce:     cfg.Nonce,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		masterKey: append([]byte(nil), masterKey...),
	}
	if v.signers == nil {
		v.signers = map[models.Chain]Signer{models.ChainEthereum: EthereumSigner{}}
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.nonce == nil {
		v.nonce = randomNonce
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}

	return v, nil
}

// Close wipes the master key copy. The vault is unusable afterwards.
func (v *Vault) Close() {
	crypto.Wipe(v.masterKey)
}

// CreateWallet generates a key pair for chain and stores it, replacing any
// previous wallet of the owner.
func (v *Vault) CreateWallet(ctx context.Context, ownerID string, chain models.Chain) (*models.WalletInfo, error) {
	signer, err := v.signer(chain)
	if err != nil {
		return nil, err
	}

	priv, err := signer.GenerateKey()
	if err != nil {
		v.fail("create", "key generation failed", ownerID, err)
		return nil, ErrVault
	}
	defer crypto.Wipe(priv)

	info, err := v.storeKey(ctx, "create", ownerID, chain, signer, priv)
	if err != nil {
		return nil, err
	}

	v.logger.Info("wallet created",
		zap.String("owner_id", ownerID),
		zap.String("chain", string(chain)),
		zap.String("address", info.Address),
	)
	return info, nil
}

// ImportWallet stores a caller-supplied hex private key (optional 0x prefix).
// Malformed input is ErrInvalidKeyFormat; the input is never echoed back.
func (v *Vault) ImportWallet(ctx context.Context, ownerID string, chain models.Chain, rawPrivateKey string) (*models.WalletInfo, error) {
	signer, err := v.signer(chain)
	if err != nil {
		return nil, err
	}

	priv, err := parseHexKey(rawPrivateKey)
	if err != nil {
		v.metrics.VaultOp("import", "invalid_key")
		return nil, err
	}
	defer crypto.Wipe(priv)

	info, err := v.storeKey(ctx, "import", ownerID, chain, signer, priv)
	if err != nil {
		return nil, err
	}

	v.logger.Info("wallet imported",
		zap.String("owner_id", ownerID),
		zap.String("chain", string(chain)),
		zap.String("address", info.Address),
	)
	return info, nil
}

// GetWallet returns public wallet data of the owner.
func (v *Vault) GetWallet(ctx context.Context, ownerID string) (*models.WalletInfo, error) {
	wallet, err := v.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return wallet.Info(), nil
}

// SignResult - результат подписи; ключ наружу не выходит
type SignResult struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"` // unix ms
	Nonce     uint64 `json:"nonce"`
}

// Sign builds the canonical message from fields, a millisecond timestamp and
// a random 64-bit nonce, and signs it with the owner's key.
func (v *Vault) Sign(ctx context.Context, ownerID string, fields map[string]any) (*SignResult, error) {
	unlock := v.locks.Lock(ownerID)
	defer unlock()

	wallet, err := v.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	signer, err := v.signer(wallet.Chain)
	if err != nil {
		return nil, err
	}

	nonce, err := v.nonce()
	if err != nil {
		v.fail("sign", "nonce generation failed", ownerID, err)
		return nil, ErrVault
	}

	now := v.now()
	msg, err := CanonicalMessage(fields, now.UnixMilli(), nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	var signature string
	err = v.withPrivateKey(wallet, func(priv []byte) error {
		var signErr error
		signature, signErr = signer.SignMessage(priv, msg)
		return signErr
	})
	if err != nil {
		if !errors.Is(err, ErrVault) {
			v.fail("sign", "signing failed", ownerID, nil)
		}
		return nil, ErrVault
	}

	if err := v.store.TouchWallet(ctx, ownerID, now.UTC()); err != nil {
		v.logger.Warn("failed to update wallet last used", zap.String("owner_id", ownerID), zap.Error(err))
	}

	v.metrics.VaultOp("sign", "ok")

	return &SignResult{
		Signature: signature,
		Message:   string(msg),
		Address:   wallet.Address,
		Timestamp: now.UnixMilli(),
		Nonce:     nonce,
	}, nil
}

// RecoverAddress returns the address that signed message on chain.
func (v *Vault) RecoverAddress(chain models.Chain, message, signature string) (string, error) {
	signer, err := v.signer(chain)
	if err != nil {
		return "", err
	}
	return signer.Recover([]byte(message), signature)
}

// CanonicalMessage returns the v1 layout: compact JSON of fields plus
// "timestamp" and "nonce", keys sorted. Caller keys named timestamp or nonce
// are overwritten.
func CanonicalMessage(fields map[string]any, timestampMs int64, nonce uint64) ([]byte, error) {
	msg := make(map[string]any, len(fields)+2)
	for k, val := range fields {
		msg[k] = val
	}
	msg["timestamp"] = timestampMs
	msg["nonce"] = nonce

	// encoding/json сортирует ключи map
	return json.Marshal(msg)
}

func (v *Vault) storeKey(ctx context.Context, op, ownerID string, chain models.Chain, signer Signer, priv []byte) (*models.WalletInfo, error) {
	address, publicKey, err := signer.Derive(priv)
	if err != nil {
		v.metrics.VaultOp(op, "invalid_key")
		return nil, ErrInvalidKeyFormat
	}

	encrypted, err := crypto.Encrypt(priv, v.masterKey, []byte(ownerID))
	if err != nil {
		v.fail(op, "encryption failed", ownerID, nil)
		return nil, ErrVault
	}

	wallet := &models.Wallet{
		OwnerID:             ownerID,
		Address:             address,
		Chain:               chain,
		PublicKey:           publicKey,
		EncryptedPrivateKey: encrypted,
		CreatedAt:           v.now().UTC(),
	}

	unlock := v.locks.Lock(ownerID)
	err = v.store.SaveWallet(ctx, wallet)
	unlock()
	if err != nil {
		v.fail(op, "storage failed", ownerID, err)
		return nil, ErrVault
	}

	v.metrics.VaultOp(op, "ok")
	return wallet.Info(), nil
}

func (v *Vault) load(ctx context.Context, ownerID string) (*models.Wallet, error) {
	wallet, err := v.store.GetWallet(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrWalletNotFound) {
			return nil, ErrNoWalletForOwner
		}
		v.fail("load", "storage failed", ownerID, err)
		return nil, ErrVault
	}
	return wallet, nil
}

// withPrivateKey расшифровывает ключ только на время fn и затирает буфер
// на любом пути выхода, включая panic
func (v *Vault) withPrivateKey(wallet *models.Wallet, fn func(priv []byte) error) error {
	priv, err := crypto.Decrypt(wallet.EncryptedPrivateKey, v.masterKey, []byte(wallet.OwnerID))
	if err != nil {
		v.fail("decrypt", "decryption failed", wallet.OwnerID, nil)
		return ErrVault
	}
	defer crypto.Wipe(priv)

	return fn(priv)
}

func (v *Vault) signer(chain models.Chain) (Signer, error) {
	signer, ok := v.signers[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	return signer, nil
}

// fail логирует только вид сбоя; cause передается лишь для ошибок хранилища
func (v *Vault) fail(op, msg, ownerID string, cause error) {
	v.metrics.VaultOp(op, "error")
	fields := []zap.Field{zap.String("op", op), zap.String("owner_id", ownerID)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	v.logger.Error(msg, fields...)
}

func parseHexKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if len(raw) != 2*crypto.KeySize {
		return nil, ErrInvalidKeyFormat
	}

	priv, err := hex.DecodeString(raw)
	if err != nil {
		return nil, ErrInvalidKeyFormat
	}
	return priv, nil
}

func randomNonce() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read random nonce: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
