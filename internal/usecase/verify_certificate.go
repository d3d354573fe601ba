package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"eri/internal/domain"
	"eri/internal/log"
)

const DefaultRegistryTimeout = 5 * time.Second

type VerifyCertificateRequest struct {
	Variant     domain.VerificationVariant
	Certificate domain.CertificateInput
	// Signature is the 0x-prefixed transport form. The on-chain variant signs
	// the certificate with the service key when it is empty.
	Signature string
	// Signer overrides the recovered address passed to the on-chain check.
	Signer string
	Actor  Actor
}

// VerifyCertificate runs one verification to a terminal verdict. It never
// returns an error: failures that prevent a decision are rejected verdicts.
type VerifyCertificate struct {
	Crypto          CryptoService
	Registry        domain.ManufacturerRegistry
	Signer          DigestSigner
	RegistryTimeout time.Duration
	Audit           *AuditEmitter
}

func (uc *VerifyCertificate) Execute(ctx context.Context, req VerifyCertificateRequest) domain.Verdict {
	verdict := uc.run(ctx, req)
	if err := uc.Audit.EmitCertificateVerified(ctx, req.Actor, req.Certificate.UniqueID, verdict); err != nil {
		log.Warnw("audit append failed", "event", domain.AuditEventCertificateVerified, "error", err)
	}
	return verdict
}

func (uc *VerifyCertificate) run(ctx context.Context, req VerifyCertificateRequest) domain.Verdict {
	variant := req.Variant
	if variant == "" {
		variant = domain.VariantAuthenticity
	}
	if variant != domain.VariantAuthenticity && variant != domain.VariantOnChain {
		return rejected(variant, domain.RejectMalformedInput, fmt.Sprintf("unknown verification variant %q", variant))
	}
	if uc.Crypto == nil || uc.Registry == nil {
		return rejected(variant, domain.RejectConfigError, "verifier is not configured")
	}

	cert, err := req.Certificate.ToCertificate()
	if err != nil {
		return rejected(variant, domain.RejectMalformedInput, err.Error())
	}

	var sig domain.Signature
	freshlySigned := strings.TrimSpace(req.Signature) == "" && variant == domain.VariantOnChain
	if !freshlySigned {
		sig, err = uc.Crypto.ParseSignature(req.Signature)
		if err != nil {
			return rejected(variant, domain.RejectBadSignatureFormat, err.Error())
		}
	}

	digest, err := uc.Crypto.Digest(cert)
	if err != nil {
		log.Errorw("digest build failed", "variant", variant, "error", err)
		return rejected(variant, domain.RejectConfigError, "digest could not be computed")
	}

	if freshlySigned {
		if uc.Signer == nil {
			return rejected(variant, domain.RejectConfigError, "no service key to sign with")
		}
		sig, err = uc.Signer.SignDigest(ctx, digest)
		if err != nil {
			log.Errorw("service signing failed", "error", err)
			return rejected(variant, domain.RejectConfigError, "service key could not sign")
		}
	}

	verdict := domain.Verdict{
		Variant:      variant,
		Digest:       digest,
		ClaimedOwner: cert.Owner,
	}

	recovered, err := uc.Crypto.Recover(digest, sig)
	if err != nil {
		log.Warnw("signature recovery failed",
			"variant", variant,
			"digest", digest.Hex(),
			"signature", uc.Crypto.FormatSignature(sig),
			"error", err,
		)
		return verdict.Reject(domain.RejectRecoveryFailed, err.Error())
	}
	verdict.RecoveredSigner = &recovered

	if variant == domain.VariantOnChain {
		return uc.verifyOnChain(ctx, verdict, cert, sig, recovered, req.Signer, freshlySigned)
	}
	return uc.verifyAuthenticity(ctx, verdict, cert, recovered)
}

func (uc *VerifyCertificate) verifyAuthenticity(ctx context.Context, verdict domain.Verdict, cert domain.Certificate, recovered common.Address) domain.Verdict {
	if recovered != cert.Owner {
		return verdict.Invalidate("signer does not match certificate owner")
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout())
	defer cancel()
	registered, err := uc.Registry.GetManufacturerAddress(callCtx, recovered)
	if err != nil {
		log.Warnw("registry lookup failed", "signer", hexAddress(recovered), "error", err)
		return verdict.Reject(domain.RejectRegistryUnavailable, "registry lookup failed")
	}
	verdict.RegisteredAddress = &registered
	if registered != recovered {
		return verdict.Invalidate("signer is not a registered manufacturer")
	}
	return verdict.Accept("signed by registered manufacturer " + hexAddress(recovered))
}

func (uc *VerifyCertificate) verifyOnChain(ctx context.Context, verdict domain.Verdict, cert domain.Certificate, sig domain.Signature, recovered common.Address, explicitSigner string, freshlySigned bool) domain.Verdict {
	signer := recovered
	if strings.TrimSpace(explicitSigner) != "" {
		parsed, err := domain.ParseAddress(strings.TrimSpace(explicitSigner))
		if err != nil {
			return verdict.Reject(domain.RejectMalformedInput, "signer: "+err.Error())
		}
		signer = parsed
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.timeout())
	defer cancel()
	ok, err := uc.Registry.VerifySignature(callCtx, signer, cert, sig[:])
	if err != nil {
		log.Warnw("on-chain verification failed", "signer", hexAddress(signer), "error", err)
		return verdict.Reject(domain.RejectRegistryUnavailable, "registry verification failed")
	}
	if !ok {
		return verdict.Invalidate("contract rejected the signature for " + hexAddress(signer))
	}
	if freshlySigned {
		return verdict.Accept("contract accepted a fresh service signature for " + hexAddress(signer))
	}
	return verdict.Accept("contract accepted the signature for " + hexAddress(signer))
}

func (uc *VerifyCertificate) timeout() time.Duration {
	if uc.RegistryTimeout > 0 {
		return uc.RegistryTimeout
	}
	return DefaultRegistryTimeout
}

func rejected(variant domain.VerificationVariant, reason domain.RejectReason, message string) domain.Verdict {
	return domain.Verdict{
		Outcome:      domain.OutcomeRejected,
		RejectReason: reason,
		Reason:       message,
		Variant:      variant,
	}
}
