package chain

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/michaelpento.lv/crossarb/types"
)

// Account is the signing identity. Loaded once at startup and shared
// read-only by every component that submits transactions. The private key
// never appears in logs.
type Account struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// NewAccount parses a hex-encoded secp256k1 private key.
func NewAccount(privateKeyHex string) (*Account, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	if keyHex == "" {
		return nil, fmt.Errorf("%w: private key not set", types.ErrConfiguration)
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid private key: %v", types.ErrConfiguration, err)
	}

	return &Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}

// Key exposes the private key to the signing step only.
func (a *Account) Key() *ecdsa.PrivateKey {
	return a.key
}
