package domain

import "github.com/ethereum/go-ethereum/common"

type VerificationVariant string

const (
	// VariantAuthenticity checks the signer against the certificate owner and
	// requires the owner to be registered as its own manufacturer.
	VariantAuthenticity VerificationVariant = "authenticity"
	// VariantOnChain delegates the signer and registry checks to the contract.
	VariantOnChain VerificationVariant = "onchain"
)

type Outcome string

const (
	OutcomeValid    Outcome = "valid"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeRejected Outcome = "rejected"
)

type RejectReason string

const (
	RejectMalformedInput      RejectReason = "MALFORMED_INPUT"
	RejectBadSignatureFormat  RejectReason = "BAD_SIGNATURE_FORMAT"
	RejectConfigError         RejectReason = "CONFIG_ERROR"
	RejectRecoveryFailed      RejectReason = "RECOVERY_FAILED"
	RejectRegistryUnavailable RejectReason = "REGISTRY_UNAVAILABLE"
)

// Verdict is the terminal state of one verification. Valid and Invalid are
// both completed checks; Rejected means the check could not be carried out.
type Verdict struct {
	Outcome      Outcome
	RejectReason RejectReason
	Reason       string
	Variant      VerificationVariant

	Digest            common.Hash
	ClaimedOwner      common.Address
	RecoveredSigner   *common.Address
	RegisteredAddress *common.Address
}

func (v Verdict) Valid() bool    { return v.Outcome == OutcomeValid }
func (v Verdict) Rejected() bool { return v.Outcome == OutcomeRejected }

// Err maps a rejected verdict onto its sentinel error. It returns nil for
// valid and invalid verdicts.
func (v Verdict) Err() error {
	if v.Outcome != OutcomeRejected {
		return nil
	}
	switch v.RejectReason {
	case RejectMalformedInput:
		return ErrMalformedInput
	case RejectBadSignatureFormat:
		return ErrBadSignatureFormat
	case RejectRecoveryFailed:
		return ErrRecoveryFailed
	case RejectRegistryUnavailable:
		return ErrRegistryUnavailable
	default:
		return ErrConfig
	}
}

func (v Verdict) Accept(reason string) Verdict {
	v.Outcome = OutcomeValid
	v.RejectReason = ""
	v.Reason = reason
	return v
}

func (v Verdict) Invalidate(reason string) Verdict {
	v.Outcome = OutcomeInvalid
	v.RejectReason = ""
	v.Reason = reason
	return v
}

func (v Verdict) Reject(reason RejectReason, message string) Verdict {
	v.Outcome = OutcomeRejected
	v.RejectReason = reason
	v.Reason = message
	return v
}
