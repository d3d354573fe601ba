package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"

	"eri/internal/domain"
)

// Backend is what the registry needs from an RPC session. *ethclient.Client
// satisfies it and is safe for concurrent use.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

func Dial(ctx context.Context, rawURL string) (*ethclient.Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: rpc url is required", domain.ErrConfig)
	}
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial rpc: %v", domain.ErrRegistryUnavailable, err)
	}
	return client, nil
}

// ResolveChainID asks the node for its chain id. When expected is set the
// node must agree with it.
func ResolveChainID(ctx context.Context, reader ChainIDReader, expected *big.Int) (*big.Int, error) {
	chainID, err := reader.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve chain id: %v", domain.ErrRegistryUnavailable, err)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: node reported no chain id", domain.ErrConfig)
	}
	if expected != nil && expected.Cmp(chainID) != 0 {
		return nil, fmt.Errorf("%w: CHAIN_ID %s does not match node chain id %s", domain.ErrConfig, expected, chainID)
	}
	return new(big.Int).Set(chainID), nil
}
