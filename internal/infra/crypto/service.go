package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"eri/internal/domain"
)

// Service binds the digest builder to one domain descriptor resolved at
// startup. The separator is computed once.
type Service struct {
	domain    domain.TypedDataDomain
	separator common.Hash
}

func NewService(d domain.TypedDataDomain) (*Service, error) {
	separator, err := DomainSeparator(d)
	if err != nil {
		return nil, err
	}
	return &Service{domain: d, separator: separator}, nil
}

func (s *Service) Digest(cert domain.Certificate) (common.Hash, error) {
	return encodeWithSeparator(cert, s.separator)
}

func (s *Service) DomainSeparator() common.Hash {
	return s.separator
}

func (s *Service) ParseSignature(value string) (domain.Signature, error) {
	return ParseSignature(value)
}

func (s *Service) FormatSignature(sig domain.Signature) string {
	return FormatSignature(sig)
}

func (s *Service) Recover(digest common.Hash, sig domain.Signature) (common.Address, error) {
	return RecoverSigner(digest, sig)
}

func (s *Service) DomainDescriptor() domain.TypedDataDomain {
	return s.domain
}

func (s *Service) TypedData(cert domain.Certificate) apitypes.TypedData {
	return TypedDataDocument(cert, s.domain)
}
