package usecase

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"eri/internal/domain"
)

type Clock func() time.Time

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	List(ctx context.Context) ([]domain.AuditEvent, error)
}

// CryptoService is the digest builder bound to the resolved domain plus the
// signature codec.
type CryptoService interface {
	Digest(cert domain.Certificate) (common.Hash, error)
	ParseSignature(value string) (domain.Signature, error)
	FormatSignature(sig domain.Signature) string
	Recover(digest common.Hash, sig domain.Signature) (common.Address, error)
	DomainDescriptor() domain.TypedDataDomain
	TypedData(cert domain.Certificate) apitypes.TypedData
}

type DigestSigner interface {
	Address() common.Address
	SignDigest(ctx context.Context, digest common.Hash) (domain.Signature, error)
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

type QRRenderer interface {
	PNG(content []byte) ([]byte, error)
}
