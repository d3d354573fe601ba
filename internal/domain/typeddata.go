package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TypedDataDomain binds a digest to one application, contract and chain.
// Salt is optional; when nil it does not participate in the encoding.
type TypedDataDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
	Salt              *[32]byte
}

// Validate reports the first missing field. Callers resolve domains once at
// startup so this failure is a configuration error.
func (d TypedDataDomain) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDomain)
	}
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidDomain)
	}
	if d.ChainID == nil || d.ChainID.Sign() <= 0 {
		return fmt.Errorf("%w: chain id is required", ErrInvalidDomain)
	}
	if d.VerifyingContract == (common.Address{}) {
		return fmt.Errorf("%w: verifying contract is required", ErrInvalidDomain)
	}
	return nil
}

// Signature is the 65 byte r || s || v triple.
type Signature [65]byte

func (s Signature) R() []byte { return s[0:32] }
func (s Signature) S() []byte { return s[32:64] }
func (s Signature) V() byte   { return s[64] }
