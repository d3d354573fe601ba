package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"eri/internal/domain"
)

const SignatureLength = 65

// ParseSignature decodes the 0x-prefixed hex transport form. Anything other
// than exactly 65 bytes is rejected.
func ParseSignature(value string) (domain.Signature, error) {
	var sig domain.Signature
	value = strings.TrimSpace(value)
	if value == "" {
		return sig, fmt.Errorf("%w: signature is empty", domain.ErrBadSignatureFormat)
	}
	raw, err := hexutil.Decode(value)
	if err != nil {
		return sig, fmt.Errorf("%w: %v", domain.ErrBadSignatureFormat, err)
	}
	if len(raw) != SignatureLength {
		return sig, fmt.Errorf("%w: expected %d bytes, got %d", domain.ErrBadSignatureFormat, SignatureLength, len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

func FormatSignature(sig domain.Signature) string {
	return hexutil.Encode(sig[:])
}

// RecoverSigner recovers the address that produced sig over digest. The
// recovery id may be either 0/1 or 27/28.
func RecoverSigner(digest common.Hash, sig domain.Signature) (common.Address, error) {
	normalized := sig
	switch v := sig.V(); v {
	case 0, 1:
	case 27, 28:
		normalized[64] = v - 27
	default:
		return common.Address{}, fmt.Errorf("%w: invalid recovery id %d", domain.ErrRecoveryFailed, v)
	}
	pub, err := ethcrypto.SigToPub(digest.Bytes(), normalized[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrRecoveryFailed, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
