package http

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"eri/internal/app"
	"eri/internal/config"
	"eri/internal/domain"
	"eri/internal/log"
	"eri/internal/usecase"
)

type Server struct {
	cfg  config.Config
	r    *gin.Engine
	http *http.Server

	signUC     *usecase.SignCertificate
	createUC   *usecase.CreateCertificate
	verifyUC   *usecase.VerifyCertificate
	registerUC *usecase.RegisterManufacturer
	lookupUC   *usecase.LookupManufacturer
	auditRepo  usecase.AuditEventRepository

	chainID       *big.Int
	signerAddress common.Address
	storageMode   string

	adminAPIKey string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

// NewServer wires the transport onto an assembled application context.
func NewServer(a *app.App) *Server {
	return NewServerWithDeps(a.Config, ServerDeps{
		Sign:          a.Sign,
		Create:        a.Create,
		Verify:        a.Verify,
		Register:      a.Register,
		Lookup:        a.Lookup,
		AuditRepo:     a.AuditRepo,
		ChainID:       a.ChainID,
		SignerAddress: a.Keys.Address(),
		StorageMode:   a.StorageMode(),
		AdminAPIKey:   a.Config.AdminAPIKey,
		RateLimiter:   a.Limiter,
	})
}

type ServerDeps struct {
	Sign          *usecase.SignCertificate
	Create        *usecase.CreateCertificate
	Verify        *usecase.VerifyCertificate
	Register      *usecase.RegisterManufacturer
	Lookup        *usecase.LookupManufacturer
	AuditRepo     usecase.AuditEventRepository
	ChainID       *big.Int
	SignerAddress common.Address
	StorageMode   string
	AdminAPIKey   string
	RateLimiter   domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:           cfg,
		r:             r,
		signUC:        deps.Sign,
		createUC:      deps.Create,
		verifyUC:      deps.Verify,
		registerUC:    deps.Register,
		lookupUC:      deps.Lookup,
		auditRepo:     deps.AuditRepo,
		chainID:       deps.ChainID,
		signerAddress: deps.SignerAddress,
		storageMode:   deps.StorageMode,
		adminAPIKey:   deps.AdminAPIKey,
	}
	if s.storageMode == "" {
		s.storageMode = "no-db"
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

// initRateLimit only configures enforcement. The limiter itself is owned and
// closed by the application context.
func (s *Server) initRateLimit(limiter domain.RateLimiter) {
	s.rateLimiter = limiter
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = time.Minute
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = s.cfg.RateLimitWindow()
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		out := gin.H{
			"status": "ok",
			"mode":   s.storageMode,
		}
		if s.chainID != nil {
			out["chain_id"] = s.chainID.String()
		}
		if s.signerAddress != (common.Address{}) {
			out["signer"] = formatAddress(s.signerAddress)
		}
		c.JSON(http.StatusOK, out)
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/manufacturers", s.handleRegisterManufacturer)
		v1.GET("/manufacturers/:address", s.handleLookupManufacturer)
		v1.GET("/audit/verify", s.handleVerifyAuditChain)
	}

	// Paths served by the first release of the service.
	s.r.POST("/generate_signature", s.handleSign)
	s.r.POST("/create_certificate", s.handleCreate)
	s.r.POST("/verify_authenticity", s.handleVerifyVariant(domain.VariantAuthenticity))
	s.r.POST("/verify_signature", s.handleVerifyVariant(domain.VariantOnChain))
	s.r.POST("/manufacturer_registers", s.handleRegisterManufacturer)
	s.r.GET("/get_owner/:address", s.handleLookupManufacturer)

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server listening", "addr", s.cfg.HTTPAddr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Infow("http server shutting down", "timeout", timeout)
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
