package domain

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")

	ErrMalformedInput      = errors.New("malformed input")
	ErrBadSignatureFormat  = errors.New("bad signature format")
	ErrRecoveryFailed      = errors.New("signature recovery failed")
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrInvalidDomain       = errors.New("invalid domain")
	ErrEncoding            = errors.New("encoding error")
	ErrConfig              = errors.New("configuration error")
	ErrPolicyDenied        = errors.New("policy denied")
	ErrTransactionFailed   = errors.New("transaction failed")
)
