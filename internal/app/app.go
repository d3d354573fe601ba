// Package app assembles the service once at startup: the RPC session, the
// resolved chain id, the service key and everything built on them.
package app

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-multierror"

	"eri/internal/config"
	"eri/internal/domain"
	"eri/internal/infra/auditmem"
	"eri/internal/infra/chain"
	"eri/internal/infra/crypto"
	"eri/internal/infra/db"
	"eri/internal/infra/keys/soft"
	"eri/internal/infra/policyopa"
	"eri/internal/infra/qrcode"
	"eri/internal/infra/ratelimit"
	"eri/internal/log"
	"eri/internal/usecase"
)

type App struct {
	Config  config.Config
	RPC     *ethclient.Client
	ChainID *big.Int

	Crypto    *crypto.Service
	Keys      *soft.Manager
	Registry  *chain.Registry
	Store     *db.Store
	AuditRepo usecase.AuditEventRepository
	Policy    *policyopa.Engine
	Limiter   domain.RateLimiter
	QR        *qrcode.Renderer

	Sign     *usecase.SignCertificate
	Create   *usecase.CreateCertificate
	Verify   *usecase.VerifyCertificate
	Register *usecase.RegisterManufacturer
	Lookup   *usecase.LookupManufacturer

	closers []func() error
}

// New validates cfg, dials the RPC endpoint and resolves the chain id. Any
// failure here is a configuration failure and the service must not start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keys, err := soft.NewManagerFromHex(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	expected, err := cfg.ExpectedChainID()
	if err != nil {
		client.Close()
		return nil, err
	}
	chainID, err := chain.ResolveChainID(ctx, client, expected)
	if err != nil {
		client.Close()
		return nil, err
	}

	a, err := Assemble(ctx, cfg, Session{Backend: client, ChainID: chainID, Keys: keys})
	if err != nil {
		client.Close()
		return nil, err
	}
	a.RPC = client
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	return a, nil
}

// Session is what New resolves from the network before assembly.
type Session struct {
	Backend chain.Backend
	ChainID *big.Int
	Keys    *soft.Manager
}

// Assemble builds the application on an already resolved session.
func Assemble(ctx context.Context, cfg config.Config, s Session) (*App, error) {
	if s.Backend == nil || s.Keys == nil {
		return nil, fmt.Errorf("%w: backend and key are required", domain.ErrConfig)
	}
	contract, err := cfg.VerifyingContract()
	if err != nil {
		return nil, err
	}
	cryptoSvc, err := crypto.NewService(domain.TypedDataDomain{
		Name:              cfg.DomainName,
		Version:           cfg.DomainVersion,
		ChainID:           s.ChainID,
		VerifyingContract: contract,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	registry, err := chain.NewRegistry(contract, s.Backend, s.ChainID,
		chain.WithTransactionSigner(s.Keys),
		chain.WithTxTimeout(cfg.TxTimeout()),
	)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		ChainID:  new(big.Int).Set(s.ChainID),
		Crypto:   cryptoSvc,
		Keys:     s.Keys,
		Registry: registry,
	}
	if err := a.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := a.initPolicy(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initLimiter(); err != nil {
		a.Close()
		return nil, err
	}
	if a.QR, err = qrcode.NewRenderer(cfg.QRCodeSize); err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: QR_CODE_SIZE: %v", domain.ErrConfig, err)
	}
	a.initUsecases()

	log.Infow("application assembled",
		"chain_id", a.ChainID.String(),
		"contract", formatAddress(contract),
		"signer", formatAddress(a.Keys.Address()),
		"storage", a.StorageMode(),
		"policy", a.Policy != nil,
	)
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	store, err := db.NewStore(ctx, a.Config)
	if err != nil {
		return err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)
	if store.Enabled() {
		a.AuditRepo = db.NewAuditEventRepository(store.DB)
		return nil
	}
	a.AuditRepo = auditmem.New()
	return nil
}

func (a *App) initPolicy(ctx context.Context) error {
	path := a.Config.PolicyBundlePath
	if path == "" {
		return nil
	}
	id := a.Config.PolicyBundleID
	if id == "" {
		id = filepath.Base(path)
	}
	engine, err := policyopa.NewEngineFromBundlePath(ctx, path, id)
	if err != nil {
		return fmt.Errorf("%w: policy bundle: %v", domain.ErrConfig, err)
	}
	a.Policy = engine
	log.Infow("issuance policy loaded", "bundle_id", id, "bundle_hash", engine.BundleHash())
	return nil
}

func (a *App) initLimiter() error {
	if a.Config.RateLimitRequests <= 0 {
		return nil
	}
	if a.Config.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Addr:     a.Config.RedisAddr,
			Password: a.Config.RedisPassword,
			DB:       a.Config.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("%w: redis: %v", domain.ErrConfig, err)
		}
		a.Limiter = limiter
		a.closers = append(a.closers, limiter.Close)
		return nil
	}
	a.Limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: a.Config.RateLimitMaxKeys})
	return nil
}

func (a *App) initUsecases() {
	audit := usecase.NewAuditEmitter(a.AuditRepo, nil)
	var policy usecase.PolicyEngine
	if a.Policy != nil {
		policy = a.Policy
	}
	a.Sign = &usecase.SignCertificate{
		Crypto: a.Crypto,
		Signer: a.Keys,
		Policy: policy,
		Audit:  audit,
	}
	a.Create = &usecase.CreateCertificate{
		Sign: a.Sign,
		QR:   a.QR,
	}
	a.Verify = &usecase.VerifyCertificate{
		Crypto:          a.Crypto,
		Registry:        a.Registry,
		Signer:          a.Keys,
		RegistryTimeout: a.Config.RegistryTimeout(),
		Audit:           audit,
	}
	a.Register = &usecase.RegisterManufacturer{
		Registry: a.Registry,
		Audit:    audit,
	}
	a.Lookup = &usecase.LookupManufacturer{
		Registry: a.Registry,
		Timeout:  a.Config.RegistryTimeout(),
	}
}

func (a *App) StorageMode() string {
	if a == nil {
		return "no-db"
	}
	return a.Store.Mode()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	a.closers = nil
	return errs.ErrorOrNil()
}

func formatAddress(addr common.Address) string {
	return addr.Hex()
}
