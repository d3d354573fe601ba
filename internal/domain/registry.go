package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ManufacturerRegistration is decoded from the ManufacturerRegistered event of
// a successful registration receipt.
type ManufacturerRegistration struct {
	Name                 string
	ManufacturerAddress  common.Address
	ManufacturerContract common.Address
	TxHash               common.Hash
	BlockNumber          uint64
}

// ManufacturerRegistry is the on-chain registry contract. Implementations must
// honour ctx cancellation and deadlines.
type ManufacturerRegistry interface {
	GetManufacturerAddress(ctx context.Context, account common.Address) (common.Address, error)
	RegisterManufacturer(ctx context.Context, name string) (ManufacturerRegistration, error)
	VerifySignature(ctx context.Context, signer common.Address, cert Certificate, signature []byte) (bool, error)
}
