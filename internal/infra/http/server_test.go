package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"eri/internal/config"
	"eri/internal/domain"
	"eri/internal/infra/auditmem"
	"eri/internal/infra/crypto"
	"eri/internal/infra/keys/soft"
	"eri/internal/infra/ratelimit"
	"eri/internal/usecase"
)

const (
	testKeyHex   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testSigner   = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testAdminKey = "admin-secret"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRegistry struct {
	mu           sync.Mutex
	manufacturer map[common.Address]common.Address
	lookupErr    error
	verifyResult bool
	verifyErr    error
	verified     []common.Address
	registerErr  error
	registered   []string
}

func (r *fakeRegistry) GetManufacturerAddress(_ context.Context, account common.Address) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return common.Address{}, r.lookupErr
	}
	return r.manufacturer[account], nil
}

func (r *fakeRegistry) RegisterManufacturer(_ context.Context, name string) (domain.ManufacturerRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registerErr != nil {
		return domain.ManufacturerRegistration{}, r.registerErr
	}
	r.registered = append(r.registered, name)
	return domain.ManufacturerRegistration{
		Name:                 name,
		ManufacturerAddress:  common.HexToAddress(testSigner),
		ManufacturerContract: common.HexToAddress("0x00000000000000000000000000000000000000c1"),
		TxHash:               common.HexToHash("0xabc1"),
		BlockNumber:          7,
	}, nil
}

func (r *fakeRegistry) VerifySignature(_ context.Context, signer common.Address, _ domain.Certificate, _ []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verified = append(r.verified, signer)
	return r.verifyResult, r.verifyErr
}

type testEnv struct {
	server   *Server
	registry *fakeRegistry
	audit    *auditmem.Log
	keys     *soft.Manager
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *ServerDeps)) *testEnv {
	t.Helper()
	keys, err := soft.NewManagerFromHex(testKeyHex)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	cryptoSvc, err := crypto.NewService(domain.TypedDataDomain{
		Name:              config.DefaultDomainName,
		Version:           config.DefaultDomainVersion,
		ChainID:           big.NewInt(31337),
		VerifyingContract: common.HexToAddress(testContract),
	})
	if err != nil {
		t.Fatalf("crypto: %v", err)
	}
	registry := &fakeRegistry{manufacturer: map[common.Address]common.Address{}}
	audit := auditmem.New()
	emitter := usecase.NewAuditEmitter(audit, nil)

	sign := &usecase.SignCertificate{Crypto: cryptoSvc, Signer: keys, Audit: emitter}
	deps := ServerDeps{
		Sign:   sign,
		Create: &usecase.CreateCertificate{Sign: sign},
		Verify: &usecase.VerifyCertificate{
			Crypto:          cryptoSvc,
			Registry:        registry,
			Signer:          keys,
			RegistryTimeout: time.Second,
			Audit:           emitter,
		},
		Register:      &usecase.RegisterManufacturer{Registry: registry, Audit: emitter},
		Lookup:        &usecase.LookupManufacturer{Registry: registry, Timeout: time.Second},
		AuditRepo:     audit,
		ChainID:       big.NewInt(31337),
		SignerAddress: keys.Address(),
		AdminAPIKey:   testAdminKey,
	}
	cfg := config.Config{HTTPAddr: ":0"}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	return &testEnv{
		server:   NewServerWithDeps(cfg, deps),
		registry: registry,
		audit:    audit,
		keys:     keys,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func certificateBody() domain.CertificateInput {
	return domain.CertificateInput{
		Name:     "Aurora Chronograph",
		UniqueID: "AUR-2024-000187",
		Serial:   "SN-88213",
		Date:     1717200000,
		Owner:    testSigner,
		Metadata: []string{"black", "42mm"},
	}
}

func (e *testEnv) sign(t *testing.T) signResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/certificates:sign", certificateBody(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sign status %d: %s", rec.Code, rec.Body.String())
	}
	return decode[signResponse](t, rec)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	out := decode[map[string]string](t, rec)
	if out["status"] != "ok" || out["mode"] != "no-db" || out["chain_id"] != "31337" || out["signer"] != testSigner {
		t.Fatalf("unexpected health: %v", out)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, nil)
	id := "2d3c3bde-6f0b-4c2f-9f1e-1b7a4b6f4e10"
	rec := env.do(t, http.MethodGet, "/healthz", nil, map[string]string{requestIDHeader: id})
	if got := rec.Header().Get(requestIDHeader); got != id {
		t.Fatalf("request id = %q", got)
	}
	rec = env.do(t, http.MethodGet, "/healthz", nil, map[string]string{requestIDHeader: "not a uuid"})
	if got := rec.Header().Get(requestIDHeader); got == "not a uuid" || got == "" {
		t.Fatalf("invalid request id should be replaced, got %q", got)
	}
}

func TestSignCertificate(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.sign(t)

	if out.Signer != testSigner {
		t.Fatalf("signer = %s", out.Signer)
	}
	if out.ChainID != "31337" {
		t.Fatalf("chain id = %s", out.ChainID)
	}
	if !strings.HasPrefix(out.Signature, "0x") || len(out.Signature) != 132 {
		t.Fatalf("signature = %s", out.Signature)
	}
	if out.Signature != strings.ToLower(out.Signature) {
		t.Fatal("signature should be lowercase hex")
	}
	if strings.Contains(out.Signature, testKeyHex) {
		t.Fatal("response leaks key material")
	}
	if env.audit.Len() != 1 {
		t.Fatalf("audit events = %d", env.audit.Len())
	}
}

func TestSignLegacyRouteMatches(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.sign(t)
	rec := env.do(t, http.MethodPost, "/generate_signature", certificateBody(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("legacy status %d", rec.Code)
	}
	second := decode[signResponse](t, rec)
	if first.Digest != second.Digest || first.Signature != second.Signature {
		t.Fatal("legacy route should produce the same deterministic signature")
	}
}

func TestSignRejectsMalformedInput(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/certificates:sign", "{not json", nil)
	if rec.Code != http.StatusBadRequest || decode[errorResponse](t, rec).Code != "INVALID_JSON" {
		t.Fatalf("bad json: %d %s", rec.Code, rec.Body.String())
	}

	body := certificateBody()
	body.Owner = "0x1234"
	rec = env.do(t, http.MethodPost, "/v1/certificates:sign", body, nil)
	if rec.Code != http.StatusBadRequest || decode[errorResponse](t, rec).Code != "MALFORMED_INPUT" {
		t.Fatalf("bad owner: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCertificate(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/certificates:create", certificateBody(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode[createResponse](t, rec)
	if out.TypedData.PrimaryType != "Certificate" {
		t.Fatalf("primary type = %s", out.TypedData.PrimaryType)
	}
	raw := decode[map[string]json.RawMessage](t, rec)
	if _, ok := raw["display_typed_data"]; !ok {
		t.Fatalf("missing display_typed_data: %s", rec.Body.String())
	}
	if _, ok := raw["typed_data"]; ok {
		t.Fatalf("typed data must not be served as a signing request")
	}
	var payload usecase.QRPayload
	if err := json.Unmarshal(out.QRPayload, &payload); err != nil {
		t.Fatalf("qr payload: %v", err)
	}
	if payload.Signature != out.Signature || payload.Certificate.UniqueID != "AUR-2024-000187" {
		t.Fatalf("qr payload = %+v", payload)
	}
	if out.QRCodePNG != "" {
		t.Fatal("no renderer configured, expected no png")
	}
}

func TestCreateCertificateWithQRCode(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, deps *ServerDeps) {
		deps.Create.QR = pngStub{}
	})
	rec := env.do(t, http.MethodPost, "/create_certificate", certificateBody(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode[createResponse](t, rec)
	png, err := base64.StdEncoding.DecodeString(out.QRCodePNG)
	if err != nil || string(png) != "PNG" {
		t.Fatalf("png = %q %v", png, err)
	}
}

type pngStub struct{}

func (pngStub) PNG([]byte) ([]byte, error) { return []byte("PNG"), nil }

func TestVerifyAuthenticityValid(t *testing.T) {
	env := newTestEnv(t, nil)
	signer := common.HexToAddress(testSigner)
	env.registry.manufacturer[signer] = signer
	signed := env.sign(t)

	body := verifyRequest{CertificateInput: certificateBody(), Signature: signed.Signature}
	rec := env.do(t, http.MethodPost, "/v1/certificates:verify", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode[verdictResponse](t, rec)
	if out.Outcome != domain.OutcomeValid || !out.Valid || out.Variant != domain.VariantAuthenticity {
		t.Fatalf("verdict = %+v", out)
	}
	if out.RecoveredSigner != testSigner || out.RegisteredAddress != testSigner {
		t.Fatalf("addresses = %+v", out)
	}
}

func TestVerifyAcceptsQRPayload(t *testing.T) {
	env := newTestEnv(t, nil)
	signer := common.HexToAddress(testSigner)
	env.registry.manufacturer[signer] = signer
	signed := env.sign(t)

	payload := usecase.QRPayload{Certificate: certificateBody(), Signature: signed.Signature}
	rec := env.do(t, http.MethodPost, "/verify_authenticity", payload, nil)
	out := decode[verdictResponse](t, rec)
	if rec.Code != http.StatusOK || out.Outcome != domain.OutcomeValid {
		t.Fatalf("status %d verdict %+v", rec.Code, out)
	}
}

func TestVerifyUnregisteredIsInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	signed := env.sign(t)

	body := verifyRequest{CertificateInput: certificateBody(), Signature: signed.Signature}
	rec := env.do(t, http.MethodPost, "/v1/certificates:verify", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	out := decode[verdictResponse](t, rec)
	if out.Outcome != domain.OutcomeInvalid || out.Valid {
		t.Fatalf("verdict = %+v", out)
	}
	if out.Reason != "signer is not a registered manufacturer" {
		t.Fatalf("reason = %s", out.Reason)
	}
}

func TestVerifyRejections(t *testing.T) {
	env := newTestEnv(t, nil)
	signed := env.sign(t)

	tests := []struct {
		name   string
		body   verifyRequest
		status int
		reason domain.RejectReason
	}{
		{
			name:   "short signature",
			body:   verifyRequest{CertificateInput: certificateBody(), Signature: "0x1234"},
			status: http.StatusBadRequest,
			reason: domain.RejectBadSignatureFormat,
		},
		{
			name:   "missing owner",
			body:   verifyRequest{CertificateInput: domain.CertificateInput{Name: "n", UniqueID: "u", Serial: "s"}, Signature: signed.Signature},
			status: http.StatusBadRequest,
			reason: domain.RejectMalformedInput,
		},
		{
			name:   "unknown variant",
			body:   verifyRequest{CertificateInput: certificateBody(), Signature: signed.Signature, Variant: "offline"},
			status: http.StatusBadRequest,
			reason: domain.RejectMalformedInput,
		},
		{
			name:   "bad recovery id",
			body:   verifyRequest{CertificateInput: certificateBody(), Signature: signed.Signature[:130] + "05"},
			status: http.StatusBadRequest,
			reason: domain.RejectRecoveryFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/certificates:verify", tt.body, nil)
			if rec.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			out := decode[verdictResponse](t, rec)
			if out.Outcome != domain.OutcomeRejected || out.RejectReason != tt.reason {
				t.Fatalf("verdict = %+v", out)
			}
		})
	}
}

func TestVerifyRegistryUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registry.lookupErr = errors.New("connection refused")
	signed := env.sign(t)

	body := verifyRequest{CertificateInput: certificateBody(), Signature: signed.Signature}
	rec := env.do(t, http.MethodPost, "/v1/certificates:verify", body, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	out := decode[verdictResponse](t, rec)
	if out.RejectReason != domain.RejectRegistryUnavailable {
		t.Fatalf("verdict = %+v", out)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatal("registry error details should not reach the client")
	}
}

func TestVerifyOnChainSignsFresh(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registry.verifyResult = true

	rec := env.do(t, http.MethodPost, "/verify_signature", certificateBody(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode[verdictResponse](t, rec)
	if out.Outcome != domain.OutcomeValid || out.Variant != domain.VariantOnChain {
		t.Fatalf("verdict = %+v", out)
	}
	if len(env.registry.verified) != 1 || env.registry.verified[0] != env.keys.Address() {
		t.Fatalf("contract called with %v", env.registry.verified)
	}
}

func TestVerifyOnChainVariantInBody(t *testing.T) {
	env := newTestEnv(t, nil)
	signed := env.sign(t)
	other := "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"

	body := verifyRequest{
		CertificateInput: certificateBody(),
		Signature:        signed.Signature,
		Signer:           other,
		Variant:          "OnChain",
	}
	rec := env.do(t, http.MethodPost, "/v1/certificates:verify", body, nil)
	out := decode[verdictResponse](t, rec)
	if rec.Code != http.StatusOK || out.Outcome != domain.OutcomeInvalid {
		t.Fatalf("status %d verdict %+v", rec.Code, out)
	}
	if env.registry.verified[0] != common.HexToAddress(other) {
		t.Fatalf("explicit signer not passed: %v", env.registry.verified)
	}
}

func TestLookupManufacturer(t *testing.T) {
	env := newTestEnv(t, nil)
	signer := common.HexToAddress(testSigner)
	env.registry.manufacturer[signer] = signer

	rec := env.do(t, http.MethodGet, "/v1/manufacturers/"+testSigner, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	out := decode[lookupResponse](t, rec)
	if !out.Registered || out.ManufacturerAddress != testSigner {
		t.Fatalf("lookup = %+v", out)
	}

	rec = env.do(t, http.MethodGet, "/get_owner/0x70997970c51812dc3a010c7d01b50e0d17dc79c8", nil, nil)
	out = decode[lookupResponse](t, rec)
	if rec.Code != http.StatusOK || out.Registered {
		t.Fatalf("unregistered lookup: %d %+v", rec.Code, out)
	}

	rec = env.do(t, http.MethodGet, "/v1/manufacturers/nope", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed address status %d", rec.Code)
	}
}

func TestServerErrorsHideUpstreamDetail(t *testing.T) {
	env := newTestEnv(t, nil)
	nodeErr := errors.New("dial tcp 10.0.0.7:8545: connection refused")
	env.registry.lookupErr = nodeErr
	env.registry.registerErr = fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, nodeErr)

	rec := env.do(t, http.MethodGet, "/v1/manufacturers/"+testSigner, nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("lookup status %d", rec.Code)
	}
	out := decode[errorResponse](t, rec)
	if out.Code != "REGISTRY_UNAVAILABLE" || out.Message != "registry unavailable" {
		t.Fatalf("lookup error = %+v", out)
	}

	rec = env.do(t, http.MethodPost, "/v1/manufacturers", registerRequest{Name: "Aurora"}, map[string]string{adminKeyHeader: testAdminKey})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("register status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.7") {
		t.Fatalf("response leaks node error: %s", rec.Body.String())
	}
}

func TestRegisterManufacturerRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	body := registerRequest{Name: "Aurora Watch Co"}

	rec := env.do(t, http.MethodPost, "/v1/manufacturers", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/v1/manufacturers", body, map[string]string{adminKeyHeader: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status %d", rec.Code)
	}
	if len(env.registry.registered) != 0 {
		t.Fatal("registry must not be called without admin")
	}

	rec = env.do(t, http.MethodPost, "/manufacturer_registers", body, map[string]string{adminKeyHeader: testAdminKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode[registrationResponse](t, rec)
	if out.Name != "Aurora Watch Co" || out.ManufacturerAddress != testSigner || out.BlockNumber != 7 {
		t.Fatalf("registration = %+v", out)
	}
}

func TestRegisterManufacturerErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := map[string]string{adminKeyHeader: testAdminKey}

	rec := env.do(t, http.MethodPost, "/v1/manufacturers", registerRequest{Name: " "}, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty name status %d", rec.Code)
	}

	env.registry.registerErr = domain.ErrTransactionFailed
	rec = env.do(t, http.MethodPost, "/v1/manufacturers", registerRequest{Name: "Aurora"}, admin)
	if rec.Code != http.StatusBadRequest || decode[errorResponse](t, rec).Code != "TRANSACTION_FAILED" {
		t.Fatalf("tx failure: %d %s", rec.Code, rec.Body.String())
	}

	env.registry.registerErr = domain.ErrRegistryUnavailable
	rec = env.do(t, http.MethodPost, "/v1/manufacturers", registerRequest{Name: "Aurora"}, admin)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unavailable status %d", rec.Code)
	}
}

func TestAdminRoutesDisabledWithoutKey(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, deps *ServerDeps) {
		deps.AdminAPIKey = ""
	})
	rec := env.do(t, http.MethodGet, "/v1/audit/verify", nil, map[string]string{adminKeyHeader: "anything"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAuditVerify(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sign(t)
	env.sign(t)

	rec := env.do(t, http.MethodGet, "/v1/audit/verify", nil, map[string]string{adminKeyHeader: testAdminKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode[auditVerifyResponse](t, rec)
	if out.Status != "ok" || out.Events != 2 {
		t.Fatalf("audit = %+v", out)
	}
}

type fixedLimiter struct {
	decision domain.RateLimitDecision
	err      error
}

func (l fixedLimiter) Allow(context.Context, string, int, time.Duration) (domain.RateLimitDecision, error) {
	return l.decision, l.err
}

func TestRateLimitDenies(t *testing.T) {
	reset := time.Now().Add(30 * time.Second)
	env := newTestEnv(t, func(cfg *config.Config, deps *ServerDeps) {
		cfg.RateLimitRequests = 1
		deps.RateLimiter = fixedLimiter{decision: domain.RateLimitDecision{Allowed: false, Limit: 1, Remaining: 0, ResetAt: reset}}
	})
	rec := env.do(t, http.MethodPost, "/v1/certificates:sign", certificateBody(), nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Header().Get("RateLimit-Limit") != "1" || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("headers = %v", rec.Header())
	}
}

func TestRateLimitMemoryLimiter(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, deps *ServerDeps) {
		cfg.RateLimitRequests = 2
		cfg.RateLimitWindowSeconds = 60
		deps.RateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	})
	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/v1/certificates:sign", certificateBody(), nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status %d", i, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodPost, "/v1/certificates:sign", certificateBody(), nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status %d", rec.Code)
	}
}

func TestRateLimitSkippedWithoutLimiter(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, deps *ServerDeps) {
		cfg.RateLimitRequests = 1
		deps.RateLimiter = nil
	})
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/v1/certificates:sign", certificateBody(), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status %d", i, rec.Code)
		}
		if rec.Header().Get("RateLimit-Limit") != "" {
			t.Fatalf("unexpected rate limit headers %v", rec.Header())
		}
	}
}

func TestRateLimitFailClosed(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, deps *ServerDeps) {
		cfg.RateLimitRequests = 1
		cfg.RateLimitFailClosed = true
		deps.RateLimiter = fixedLimiter{err: errors.New("redis down")}
	})
	rec := env.do(t, http.MethodPost, "/v1/certificates:verify", certificateBody(), nil)
	if rec.Code != http.StatusTooManyRequests || decode[errorResponse](t, rec).Code != "RATE_LIMIT_UNAVAILABLE" {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNoRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/certificates:burn", certificateBody(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}
