package vault

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer is the chain-specific half of the vault. Private keys cross this
// interface only as raw scalars owned by the vault, which wipes them.
type Signer interface {
	// GenerateKey returns a fresh raw private key
	GenerateKey() ([]byte, error)
	// Derive returns the address and hex public key of a raw private key
	Derive(priv []byte) (address, publicKey string, err error)
	// SignMessage signs msg with the chain's message-signing scheme
	SignMessage(priv, msg []byte) (string, error)
	// Recover returns the address that produced signature over msg
	Recover(msg []byte, signature string) (string, error)
}

// EthereumSigner signs with secp256k1 using the EIP-191 personal message
// prefix, as wallets do for personal_sign.
type EthereumSigner struct{}

var _ Signer = EthereumSigner{}

// GenerateKey generates a secp256k1 private key.
func (EthereumSigner) GenerateKey() ([]byte, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	defer wipeECDSA(key)

	return ethcrypto.FromECDSA(key), nil
}

// Derive returns the checksummed address and uncompressed public key.
func (EthereumSigner) Derive(priv []byte) (string, string, error) {
	key, err := ethcrypto.ToECDSA(priv)
	if err != nil {
		return "", "", ErrInvalidKeyFormat
	}
	defer wipeECDSA(key)

	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	publicKey := hex.EncodeToString(ethcrypto.FromECDSAPub(&key.PublicKey))

	return address, publicKey, nil
}

// SignMessage returns a 65-byte [R || S || V] signature with V in {27, 28}.
func (EthereumSigner) SignMessage(priv, msg []byte) (string, error) {
	key, err := ethcrypto.ToECDSA(priv)
	if err != nil {
		return "", ErrInvalidKeyFormat
	}
	defer wipeECDSA(key)

	sig, err := ethcrypto.Sign(accounts.TextHash(msg), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	sig[ethcrypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), nil
}

// Recover accepts V in {0, 1} or {27, 28}.
func (EthereumSigner) Recover(msg []byte, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != ethcrypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", ethcrypto.SignatureLength, len(sig))
	}
	if sig[ethcrypto.RecoveryIDOffset] >= 27 {
		sig[ethcrypto.RecoveryIDOffset] -= 27
	}

	pub, err := ethcrypto.SigToPub(accounts.TextHash(msg), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}

	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// wipeECDSA обнуляет скаляр приватного ключа
func wipeECDSA(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	clear(key.D.Bits())
	key.D.SetInt64(0)
}
