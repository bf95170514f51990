package models

import (
	"fmt"
	"strings"
	"time"
)

// Chain - тег блокчейна кошелька
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
	ChainAptos    Chain = "aptos"
)

// ParseChain parses a chain tag case-insensitively.
func ParseChain(raw string) (Chain, error) {
	switch c := Chain(strings.ToLower(strings.TrimSpace(raw))); c {
	case ChainEthereum, ChainSolana, ChainAptos:
		return c, nil
	default:
		return "", fmt.Errorf("unknown chain %q", raw)
	}
}

// Wallet - запись хранилища кошельков.
// Приватный ключ присутствует только в виде шифротекста.
type Wallet struct {
	CreatedAt           time.Time  `json:"created_at"`
	LastUsed            *time.Time `json:"last_used,omitempty"`
	OwnerID             string     `json:"owner_id"`
	Address             string     `json:"address"`
	Chain               Chain      `json:"chain"`
	PublicKey           string     `json:"public_key"`            // hex
	EncryptedPrivateKey []byte     `json:"encrypted_private_key"` // nonce || ciphertext || tag
}

// Info strips ciphertext from the wallet.
func (w *Wallet) Info() *WalletInfo {
	return &WalletInfo{
		OwnerID:   w.OwnerID,
		Address:   w.Address,
		Chain:     w.Chain,
		PublicKey: w.PublicKey,
		CreatedAt: w.CreatedAt,
		LastUsed:  w.LastUsed,
	}
}

// WalletInfo is what leaves the vault: public data only.
type WalletInfo struct {
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	OwnerID   string     `json:"owner_id"`
	Address   string     `json:"address"`
	Chain     Chain      `json:"chain"`
	PublicKey string     `json:"public_key"`
}
