package usecase

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"eri/internal/domain"
	cryptoinfra "eri/internal/infra/crypto"
	"eri/internal/infra/keys/soft"
)

var testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func testCryptoService(t *testing.T) *cryptoinfra.Service {
	t.Helper()
	svc, err := cryptoinfra.NewService(domain.TypedDataDomain{
		Name:              "CertificateAuth",
		Version:           "1",
		ChainID:           big.NewInt(31337),
		VerifyingContract: testContract,
	})
	if err != nil {
		t.Fatalf("crypto service: %v", err)
	}
	return svc
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, *soft.Manager) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	manager, err := soft.NewManager(key)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return key, manager
}

func certificateFor(owner common.Address) domain.CertificateInput {
	return domain.CertificateInput{
		Name:     "Phone",
		UniqueID: "X1",
		Serial:   "S1",
		Date:     1700000000,
		Owner:    strings.ToLower(owner.Hex()),
		Metadata: []string{"m1"},
	}
}

// signInput signs the certificate digest with manager and returns the
// transport form.
func signInput(t *testing.T, svc *cryptoinfra.Service, manager *soft.Manager, in domain.CertificateInput) string {
	t.Helper()
	cert, err := in.ToCertificate()
	if err != nil {
		t.Fatalf("to certificate: %v", err)
	}
	digest, err := svc.Digest(cert)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	sig, err := manager.SignDigest(context.Background(), digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return cryptoinfra.FormatSignature(sig)
}

type fakeRegistry struct {
	mu            sync.Mutex
	manufacturers map[common.Address]common.Address
	lookupErr     error
	block         bool
	verifyResult  bool
	verifyErr     error
	registerErr   error
	registration  domain.ManufacturerRegistration

	lookups        int
	verifySigner   common.Address
	verifySig      []byte
	registeredName string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{manufacturers: map[common.Address]common.Address{}}
}

func (f *fakeRegistry) GetManufacturerAddress(ctx context.Context, account common.Address) (common.Address, error) {
	if f.block {
		<-ctx.Done()
		return common.Address{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookupErr != nil {
		return common.Address{}, f.lookupErr
	}
	return f.manufacturers[account], nil
}

func (f *fakeRegistry) RegisterManufacturer(_ context.Context, name string) (domain.ManufacturerRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registeredName = name
	if f.registerErr != nil {
		return domain.ManufacturerRegistration{}, f.registerErr
	}
	out := f.registration
	out.Name = name
	return out, nil
}

func (f *fakeRegistry) VerifySignature(ctx context.Context, signer common.Address, _ domain.Certificate, signature []byte) (bool, error) {
	if f.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifySigner = signer
	f.verifySig = append([]byte(nil), signature...)
	return f.verifyResult, f.verifyErr
}

// memoryAuditRepo chains events the same way the database repository does.
type memoryAuditRepo struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (r *memoryAuditRepo) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.AuditEvent{}, r.err
	}
	payloadJSON, payloadHash, err := AuditPayloadHash(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Payload = payloadJSON
	event.PayloadHash = payloadHash
	event.Seq = int64(len(r.events) + 1)
	event.PrevEventHash = ZeroAuditHash
	if len(r.events) > 0 {
		event.PrevEventHash = r.events[len(r.events)-1].EventHash
	}
	hash, err := ComputeAuditEventHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventHash = hash
	r.events = append(r.events, event)
	return event, nil
}

func (r *memoryAuditRepo) List(context.Context) ([]domain.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditEvent(nil), r.events...), nil
}

type fakePolicy struct {
	result domain.PolicyResult
	err    error
	inputs []domain.PolicyInput
}

func (p *fakePolicy) Evaluate(_ context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	p.inputs = append(p.inputs, input)
	if p.err != nil {
		return domain.PolicyEvaluation{}, p.err
	}
	return domain.PolicyEvaluation{BundleID: "test", BundleHash: "abc", Result: p.result}, nil
}

type fakeQR struct {
	content []byte
}

func (q *fakeQR) PNG(content []byte) ([]byte, error) {
	q.content = append([]byte(nil), content...)
	return []byte("\x89PNG"), nil
}

var errBoom = errors.New("boom")

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}
