package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"eri/internal/domain"
	"eri/internal/log"
)

type RegisterManufacturerRequest struct {
	Name  string
	Actor Actor
}

// RegisterManufacturer registers the service key as a manufacturer on the
// registry contract.
type RegisterManufacturer struct {
	Registry domain.ManufacturerRegistry
	Audit    *AuditEmitter
}

func (uc *RegisterManufacturer) Execute(ctx context.Context, req RegisterManufacturerRequest) (domain.ManufacturerRegistration, error) {
	if uc.Registry == nil {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: registry is not configured", domain.ErrConfig)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: name is required", domain.ErrMalformedInput)
	}

	registration, err := uc.Registry.RegisterManufacturer(ctx, name)
	if err != nil {
		uc.audit(ctx, req.Actor, name, domain.ManufacturerRegistration{}, domain.AuditResultFailure, registrationErrorCode(err))
		return domain.ManufacturerRegistration{}, err
	}
	uc.audit(ctx, req.Actor, name, registration, domain.AuditResultSuccess, "")

	log.Infow("manufacturer registered",
		"name", name,
		"manufacturer_address", hexAddress(registration.ManufacturerAddress),
		"manufacturer_contract", hexAddress(registration.ManufacturerContract),
		"tx_hash", registration.TxHash.Hex(),
	)
	return registration, nil
}

func (uc *RegisterManufacturer) audit(ctx context.Context, actor Actor, name string, registration domain.ManufacturerRegistration, result domain.AuditResult, code string) {
	if err := uc.Audit.EmitManufacturerRegistered(ctx, actor, name, registration, result, code); err != nil {
		log.Warnw("audit append failed", "event", domain.AuditEventManufacturerRegistered, "error", err)
	}
}

func registrationErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrTransactionFailed):
		return "TRANSACTION_FAILED"
	case errors.Is(err, domain.ErrRegistryUnavailable):
		return string(domain.RejectRegistryUnavailable)
	case errors.Is(err, domain.ErrMalformedInput):
		return string(domain.RejectMalformedInput)
	default:
		return "INTERNAL"
	}
}

// LookupManufacturer returns the address the registry holds for an account.
// The zero address means the account is not registered.
type LookupManufacturer struct {
	Registry domain.ManufacturerRegistry
	Timeout  time.Duration
}

func (uc *LookupManufacturer) Execute(ctx context.Context, account string) (common.Address, error) {
	if uc.Registry == nil {
		return common.Address{}, fmt.Errorf("%w: registry is not configured", domain.ErrConfig)
	}
	addr, err := domain.ParseAddress(strings.TrimSpace(account))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: address: %v", domain.ErrMalformedInput, err)
	}
	timeout := uc.Timeout
	if timeout <= 0 {
		timeout = DefaultRegistryTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	registered, err := uc.Registry.GetManufacturerAddress(callCtx, addr)
	if err != nil {
		if errors.Is(err, domain.ErrRegistryUnavailable) {
			return common.Address{}, err
		}
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}
	return registered, nil
}
