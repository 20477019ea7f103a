package client

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is the signing identity a listener loop is bound to. The loops
// only read chain state, but the identity is established once at startup
// alongside the connection so downstream effects can be attributed to it.
type Account struct {
	Address common.Address

	key *ecdsa.PrivateKey
}

// NewAccount derives an account from a hex-encoded private key.
// A "0x" prefix is accepted.
func NewAccount(hexKey string) (*Account, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}

// PrivateKey returns the account's signing key
func (a *Account) PrivateKey() *ecdsa.PrivateKey {
	return a.key
}
