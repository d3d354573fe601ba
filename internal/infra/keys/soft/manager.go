package soft

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"eri/internal/domain"
)

// Manager holds the service signing key. The key never leaves the manager;
// callers only see the address and signatures.
type Manager struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewManager(key *ecdsa.PrivateKey) (*Manager, error) {
	if key == nil {
		return nil, errors.New("private key is required")
	}
	return &Manager{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey)}, nil
}

// NewManagerFromHex parses a hex encoded secp256k1 key with or without the 0x
// prefix. Parse errors never echo the input.
func NewManagerFromHex(value string) (*Manager, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if value == "" {
		return nil, fmt.Errorf("%w: private key is required", domain.ErrConfig)
	}
	key, err := ethcrypto.HexToECDSA(value)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not a valid secp256k1 key", domain.ErrConfig)
	}
	return NewManager(key)
}

func (m *Manager) Address() common.Address {
	return m.address
}

// SignHash signs a 32 byte digest and returns r || s || v with v in {0,1}.
func (m *Manager) SignHash(_ context.Context, digest common.Hash) ([]byte, error) {
	if m == nil || m.key == nil {
		return nil, errors.New("signing key is not configured")
	}
	return ethcrypto.Sign(digest.Bytes(), m.key)
}

// SignDigest signs a typed-data digest in the wallet convention, v in {27,28}.
func (m *Manager) SignDigest(ctx context.Context, digest common.Hash) (domain.Signature, error) {
	var sig domain.Signature
	raw, err := m.SignHash(ctx, digest)
	if err != nil {
		return sig, err
	}
	if len(raw) != len(sig) {
		return sig, fmt.Errorf("unexpected signature length %d", len(raw))
	}
	copy(sig[:], raw)
	sig[64] += 27
	return sig, nil
}

// TransactOpts returns transaction options that sign with the service key for
// chainID.
func (m *Manager) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	if m == nil || m.key == nil {
		return nil, errors.New("signing key is not configured")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: chain id is required", domain.ErrConfig)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(m.key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// String keeps the key out of formatted output.
func (m *Manager) String() string {
	if m == nil {
		return "soft.Manager(<nil>)"
	}
	return "soft.Manager(" + strings.ToLower(m.address.Hex()) + ")"
}

func (m *Manager) GoString() string {
	return m.String()
}
