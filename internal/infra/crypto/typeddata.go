package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"eri/internal/domain"
)

const (
	DomainType          = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	DomainTypeWithSalt  = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract,bytes32 salt)"
	CertificateType     = "Certificate(string name,string uniqueId,string serial,uint256 date,address owner,string[] metadata)"
	CertificatePrimary  = "Certificate"
	typedDataPrefixByte = 0x19
	typedDataVersion    = 0x01
)

var (
	domainTypeHash         = ethcrypto.Keccak256Hash([]byte(DomainType))
	domainTypeWithSaltHash = ethcrypto.Keccak256Hash([]byte(DomainTypeWithSalt))
	certificateTypeHash    = ethcrypto.Keccak256Hash([]byte(CertificateType))

	stringArrayArgs = mustStringArrayArgs()
	maxUint256      = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustStringArrayArgs() abi.Arguments {
	typ, err := abi.NewType("string[]", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: typ}}
}

// TypeHash returns keccak256 of the certificate type string.
func TypeHash() common.Hash {
	return certificateTypeHash
}

// DomainSeparator hashes the domain descriptor. The salt member participates
// only when set.
func DomainSeparator(d domain.TypedDataDomain) (common.Hash, error) {
	if err := d.Validate(); err != nil {
		return common.Hash{}, err
	}
	chainID, err := uint256Word(d.ChainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: chain id: %v", domain.ErrInvalidDomain, err)
	}

	typeHash := domainTypeHash
	if d.Salt != nil {
		typeHash = domainTypeWithSaltHash
	}
	words := [][]byte{
		typeHash.Bytes(),
		ethcrypto.Keccak256([]byte(d.Name)),
		ethcrypto.Keccak256([]byte(d.Version)),
		chainID,
		addressWord(d.VerifyingContract),
	}
	if d.Salt != nil {
		words = append(words, d.Salt[:])
	}
	return ethcrypto.Keccak256Hash(words...), nil
}

// StructHash hashes a certificate in its fixed field order. Metadata is
// committed as keccak256 of the ABI encoding of the whole string array.
func StructHash(cert domain.Certificate) (common.Hash, error) {
	date, err := uint256Word(cert.Date)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: date: %v", domain.ErrEncoding, err)
	}
	metadataHash, err := MetadataHash(cert.Metadata)
	if err != nil {
		return common.Hash{}, err
	}
	return ethcrypto.Keccak256Hash(
		certificateTypeHash.Bytes(),
		ethcrypto.Keccak256([]byte(cert.Name)),
		ethcrypto.Keccak256([]byte(cert.UniqueID)),
		ethcrypto.Keccak256([]byte(cert.Serial)),
		date,
		addressWord(cert.Owner),
		metadataHash.Bytes(),
	), nil
}

func MetadataHash(metadata []string) (common.Hash, error) {
	if metadata == nil {
		metadata = []string{}
	}
	packed, err := stringArrayArgs.Pack(metadata)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: metadata: %v", domain.ErrEncoding, err)
	}
	return ethcrypto.Keccak256Hash(packed), nil
}

// Encode returns the digest that is signed and recovered against:
// keccak256(0x19 0x01 || domainSeparator || structHash).
func Encode(cert domain.Certificate, d domain.TypedDataDomain) (common.Hash, error) {
	separator, err := DomainSeparator(d)
	if err != nil {
		return common.Hash{}, err
	}
	return encodeWithSeparator(cert, separator)
}

func encodeWithSeparator(cert domain.Certificate, separator common.Hash) (common.Hash, error) {
	structHash, err := StructHash(cert)
	if err != nil {
		return common.Hash{}, err
	}
	return ethcrypto.Keccak256Hash(
		[]byte{typedDataPrefixByte, typedDataVersion},
		separator.Bytes(),
		structHash.Bytes(),
	), nil
}

func uint256Word(value *big.Int) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("value is required")
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("value is negative")
	}
	if value.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("value exceeds 256 bits")
	}
	return common.LeftPadBytes(value.Bytes(), 32), nil
}

func addressWord(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}
