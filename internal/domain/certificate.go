package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Certificate is the typed record a manufacturer signs for one physical item.
// Metadata order is significant.
type Certificate struct {
	Name     string
	UniqueID string
	Serial   string
	Date     *big.Int
	Owner    common.Address
	Metadata []string
}

// CertificateInput is the transport form of a certificate.
type CertificateInput struct {
	Name     string   `json:"name"`
	UniqueID string   `json:"unique_id"`
	Serial   string   `json:"serial"`
	Date     uint64   `json:"date"`
	Owner    string   `json:"owner"`
	Metadata []string `json:"metadata"`
}

func (in CertificateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrMalformedInput)
	}
	if strings.TrimSpace(in.UniqueID) == "" {
		return fmt.Errorf("%w: unique_id is required", ErrMalformedInput)
	}
	if strings.TrimSpace(in.Serial) == "" {
		return fmt.Errorf("%w: serial is required", ErrMalformedInput)
	}
	if _, err := ParseAddress(in.Owner); err != nil {
		return fmt.Errorf("%w: owner: %v", ErrMalformedInput, err)
	}
	return nil
}

// ToCertificate validates the input and converts it to the signed record.
func (in CertificateInput) ToCertificate() (Certificate, error) {
	if err := in.Validate(); err != nil {
		return Certificate{}, err
	}
	owner, _ := ParseAddress(in.Owner)
	metadata := make([]string, len(in.Metadata))
	copy(metadata, in.Metadata)
	return Certificate{
		Name:     in.Name,
		UniqueID: in.UniqueID,
		Serial:   in.Serial,
		Date:     new(big.Int).SetUint64(in.Date),
		Owner:    owner,
		Metadata: metadata,
	}, nil
}

// Input returns the transport form. Dates beyond uint64 are truncated to their low 64 bits.
func (c Certificate) Input() CertificateInput {
	var date uint64
	if c.Date != nil {
		date = c.Date.Uint64()
	}
	metadata := make([]string, len(c.Metadata))
	copy(metadata, c.Metadata)
	return CertificateInput{
		Name:     c.Name,
		UniqueID: c.UniqueID,
		Serial:   c.Serial,
		Date:     date,
		Owner:    strings.ToLower(c.Owner.Hex()),
		Metadata: metadata,
	}
}

// ParseAddress accepts only the 0x-prefixed 40 hex character form. The zero
// address is rejected since no key can sign for it.
func ParseAddress(value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, fmt.Errorf("address is empty")
	}
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return common.Address{}, fmt.Errorf("address must be 0x-prefixed")
	}
	if len(value) != 2+2*common.AddressLength || !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("address must be 40 hex characters")
	}
	addr := common.HexToAddress(value)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}
