package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"eri/internal/domain"
)

const (
	DefaultDomainName    = "CertificateAuth"
	DefaultDomainVersion = "1"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string
	LogDebug    bool

	RPCURL          string
	PrivateKeyHex   string
	ContractAddress string
	ChainID         string

	DomainName    string
	DomainVersion string

	RegistryTimeoutMS      int
	TxTimeoutSeconds       int
	ShutdownTimeoutSeconds int

	AdminAPIKey string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PolicyBundlePath string
	PolicyBundleID   string

	QRCodeSize int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		rpcURL = os.Getenv("BASE_URL")
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		LogDebug:               envBoolDefault("LOG_DEBUG", false),
		RPCURL:                 rpcURL,
		PrivateKeyHex:          os.Getenv("PRIVATE_KEY"),
		ContractAddress:        os.Getenv("CONTRACT_ADDRESS"),
		ChainID:                os.Getenv("CHAIN_ID"),
		DomainName:             envDefault("EIP712_DOMAIN_NAME", DefaultDomainName),
		DomainVersion:          envDefault("EIP712_DOMAIN_VERSION", DefaultDomainVersion),
		RegistryTimeoutMS:      envIntDefault("REGISTRY_TIMEOUT_MS", 5000),
		TxTimeoutSeconds:       envIntDefault("TX_TIMEOUT_SECONDS", 120),
		ShutdownTimeoutSeconds: envIntDefault("SHUTDOWN_TIMEOUT_SECONDS", 10),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		PolicyBundlePath:       os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:         os.Getenv("POLICY_BUNDLE_ID"),
		QRCodeSize:             envIntDefault("QR_CODE_SIZE", 256),
	}
}

// Validate checks what the service cannot start without. The private key is
// checked for presence only; parsing happens in the key manager so that no
// key material reaches this package's errors.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return fmt.Errorf("%w: RPC_URL is required", domain.ErrConfig)
	}
	if strings.TrimSpace(c.PrivateKeyHex) == "" {
		return fmt.Errorf("%w: PRIVATE_KEY is required", domain.ErrConfig)
	}
	if _, err := c.VerifyingContract(); err != nil {
		return err
	}
	if _, err := c.ExpectedChainID(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DomainName) == "" || strings.TrimSpace(c.DomainVersion) == "" {
		return fmt.Errorf("%w: EIP712 domain name and version are required", domain.ErrConfig)
	}
	return nil
}

func (c Config) VerifyingContract() (common.Address, error) {
	addr, err := domain.ParseAddress(strings.TrimSpace(c.ContractAddress))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: CONTRACT_ADDRESS: %v", domain.ErrConfig, err)
	}
	return addr, nil
}

// ExpectedChainID returns nil when CHAIN_ID is unset.
func (c Config) ExpectedChainID() (*big.Int, error) {
	value := strings.TrimSpace(c.ChainID)
	if value == "" {
		return nil, nil
	}
	chainID, ok := new(big.Int).SetString(value, 10)
	if !ok || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: CHAIN_ID must be a positive integer", domain.ErrConfig)
	}
	return chainID, nil
}

func (c Config) RegistryTimeout() time.Duration {
	return time.Duration(c.RegistryTimeoutMS) * time.Millisecond
}

func (c Config) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
