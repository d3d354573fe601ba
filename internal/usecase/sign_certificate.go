package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"eri/internal/domain"
	"eri/internal/log"
)

const PolicyActionSignCertificate = "sign_certificate"

type SignCertificateRequest struct {
	Certificate domain.CertificateInput
	Actor       Actor
}

type SignCertificateResult struct {
	Certificate domain.Certificate
	Digest      common.Hash
	Signature   domain.Signature
	Signer      common.Address
	Policy      *domain.PolicyEvaluation
}

// SignCertificate issues a certificate signature with the service key.
type SignCertificate struct {
	Crypto CryptoService
	Signer DigestSigner
	Policy PolicyEngine
	Audit  *AuditEmitter
}

func (uc *SignCertificate) Execute(ctx context.Context, req SignCertificateRequest) (SignCertificateResult, error) {
	if uc.Crypto == nil || uc.Signer == nil {
		return SignCertificateResult{}, fmt.Errorf("%w: signing is not configured", domain.ErrConfig)
	}
	cert, err := req.Certificate.ToCertificate()
	if err != nil {
		return SignCertificateResult{}, err
	}
	signer := uc.Signer.Address()

	var evaluation *domain.PolicyEvaluation
	if uc.Policy != nil {
		d := uc.Crypto.DomainDescriptor()
		chainID := ""
		if d.ChainID != nil {
			chainID = d.ChainID.String()
		}
		eval, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
			Action:      PolicyActionSignCertificate,
			Certificate: cert.Input(),
			Signer:      hexAddress(signer),
			ChainID:     chainID,
		})
		if err != nil {
			return SignCertificateResult{}, fmt.Errorf("policy evaluation: %w", err)
		}
		if !eval.Result.Allow {
			uc.audit(ctx, req.Actor, cert, common.Hash{}, signer, domain.AuditResultFailure, "POLICY_DENIED")
			return SignCertificateResult{Policy: &eval}, fmt.Errorf("%w: %s", domain.ErrPolicyDenied, denyCodes(eval.Result.Deny))
		}
		evaluation = &eval
	}

	digest, err := uc.Crypto.Digest(cert)
	if err != nil {
		return SignCertificateResult{}, err
	}
	sig, err := uc.Signer.SignDigest(ctx, digest)
	if err != nil {
		uc.audit(ctx, req.Actor, cert, digest, signer, domain.AuditResultFailure, "SIGN_FAILED")
		return SignCertificateResult{}, fmt.Errorf("sign digest: %w", err)
	}
	uc.audit(ctx, req.Actor, cert, digest, signer, domain.AuditResultSuccess, "")

	log.Infow("certificate signed",
		"unique_id", cert.UniqueID,
		"digest", digest.Hex(),
		"signer", hexAddress(signer),
	)
	return SignCertificateResult{
		Certificate: cert,
		Digest:      digest,
		Signature:   sig,
		Signer:      signer,
		Policy:      evaluation,
	}, nil
}

func (uc *SignCertificate) audit(ctx context.Context, actor Actor, cert domain.Certificate, digest common.Hash, signer common.Address, result domain.AuditResult, code string) {
	if err := uc.Audit.EmitCertificateSigned(ctx, actor, cert, digest, signer, result, code); err != nil {
		log.Warnw("audit append failed", "event", domain.AuditEventCertificateSigned, "error", err)
	}
}

func denyCodes(denies []domain.PolicyDeny) string {
	if len(denies) == 0 {
		return "denied"
	}
	codes := make([]string, 0, len(denies))
	for _, deny := range denies {
		codes = append(codes, deny.Code)
	}
	return strings.Join(codes, ",")
}
