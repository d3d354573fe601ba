package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"eri/internal/domain"
)

const defaultTxTimeout = 120 * time.Second

// TransactionSigner produces transaction options bound to the service key.
type TransactionSigner interface {
	Address() common.Address
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// certificateTuple mirrors the contract struct. Field names follow the ABI
// component names so the encoder can match them.
type certificateTuple struct {
	Name     string
	UniqueId string
	Serial   string
	Date     *big.Int
	Owner    common.Address
	Metadata []string
}

type manufacturerRegisteredEvent struct {
	ManufacturerAddress  common.Address
	ManufacturerContract common.Address
}

type Registry struct {
	address   common.Address
	abi       abi.ABI
	contract  *bind.BoundContract
	backend   Backend
	signer    TransactionSigner
	chainID   *big.Int
	txTimeout time.Duration
}

type RegistryOption func(*Registry)

func WithTransactionSigner(signer TransactionSigner) RegistryOption {
	return func(r *Registry) {
		r.signer = signer
	}
}

func WithTxTimeout(timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		if timeout > 0 {
			r.txTimeout = timeout
		}
	}
}

func NewRegistry(address common.Address, backend Backend, chainID *big.Int, opts ...RegistryOption) (*Registry, error) {
	if backend == nil {
		return nil, errors.New("rpc backend is required")
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: contract address is required", domain.ErrConfig)
	}
	parsed, err := ParsedRegistryABI()
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	r := &Registry{
		address:   address,
		abi:       parsed,
		contract:  bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:   backend,
		txTimeout: defaultTxTimeout,
	}
	if chainID != nil {
		r.chainID = new(big.Int).Set(chainID)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Registry) Address() common.Address {
	return r.address
}

func (r *Registry) GetManufacturerAddress(ctx context.Context, account common.Address) (common.Address, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetManufacturerAddress, account); err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %v", domain.ErrRegistryUnavailable, methodGetManufacturerAddress, err)
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%w: %s returned %d values", domain.ErrRegistryUnavailable, methodGetManufacturerAddress, len(out))
	}
	addr, ok := abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if !ok || addr == nil {
		return common.Address{}, fmt.Errorf("%w: %s returned unexpected type", domain.ErrRegistryUnavailable, methodGetManufacturerAddress)
	}
	return *addr, nil
}

func (r *Registry) VerifySignature(ctx context.Context, signer common.Address, cert domain.Certificate, signature []byte) (bool, error) {
	tuple := certificateTuple{
		Name:     cert.Name,
		UniqueId: cert.UniqueID,
		Serial:   cert.Serial,
		Date:     cert.Date,
		Owner:    cert.Owner,
		Metadata: cert.Metadata,
	}
	if tuple.Date == nil {
		tuple.Date = new(big.Int)
	}
	if tuple.Metadata == nil {
		tuple.Metadata = []string{}
	}
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodVerifySignature, signer, tuple, signature); err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrRegistryUnavailable, methodVerifySignature, err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("%w: %s returned %d values", domain.ErrRegistryUnavailable, methodVerifySignature, len(out))
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("%w: %s returned unexpected type", domain.ErrRegistryUnavailable, methodVerifySignature)
	}
	return ok, nil
}

// RegisterManufacturer submits manufacturerRegisters(name) with the service
// key and waits for the receipt. A reverted transaction is ErrTransactionFailed.
func (r *Registry) RegisterManufacturer(ctx context.Context, name string) (domain.ManufacturerRegistration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: name is required", domain.ErrMalformedInput)
	}
	if r.signer == nil {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: no transaction signer configured", domain.ErrConfig)
	}
	if r.chainID == nil {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: chain id is not resolved", domain.ErrConfig)
	}

	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	opts, err := r.signer.TransactOpts(ctx, r.chainID)
	if err != nil {
		return domain.ManufacturerRegistration{}, err
	}
	tx, err := r.contract.Transact(opts, methodManufacturerRegisters, name)
	if err != nil {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: send %s: %v", domain.ErrRegistryUnavailable, methodManufacturerRegisters, err)
	}
	receipt, err := bind.WaitMined(ctx, r.backend, tx)
	if err != nil {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: wait for %s: %v", domain.ErrRegistryUnavailable, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.ManufacturerRegistration{}, fmt.Errorf("%w: %s reverted", domain.ErrTransactionFailed, tx.Hash().Hex())
	}

	registration, err := r.decodeRegistration(receipt)
	if err != nil {
		return domain.ManufacturerRegistration{}, err
	}
	registration.Name = name
	registration.TxHash = tx.Hash()
	return registration, nil
}

func (r *Registry) decodeRegistration(receipt *types.Receipt) (domain.ManufacturerRegistration, error) {
	event, ok := r.abi.Events[eventManufacturerRegistered]
	if !ok {
		return domain.ManufacturerRegistration{}, errors.New("registry abi has no registration event")
	}
	for _, log := range receipt.Logs {
		if log == nil || log.Address != r.address || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		var decoded manufacturerRegisteredEvent
		if err := r.contract.UnpackLog(&decoded, eventManufacturerRegistered, *log); err != nil {
			return domain.ManufacturerRegistration{}, fmt.Errorf("%w: decode %s: %v", domain.ErrTransactionFailed, eventManufacturerRegistered, err)
		}
		registration := domain.ManufacturerRegistration{
			ManufacturerAddress:  decoded.ManufacturerAddress,
			ManufacturerContract: decoded.ManufacturerContract,
		}
		if receipt.BlockNumber != nil {
			registration.BlockNumber = receipt.BlockNumber.Uint64()
		}
		return registration, nil
	}
	return domain.ManufacturerRegistration{}, fmt.Errorf("%w: receipt has no %s event", domain.ErrTransactionFailed, eventManufacturerRegistered)
}
