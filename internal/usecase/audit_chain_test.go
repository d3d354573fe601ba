package usecase

import (
	"context"
	"testing"

	"eri/internal/domain"
)

func TestVerifyAuditChainDetectsTampering(t *testing.T) {
	repo := &memoryAuditRepo{}
	emitter := NewAuditEmitter(repo, fixedClock)
	for _, name := range []string{"Acme", "Globex", "Initech"} {
		err := emitter.EmitManufacturerRegistered(context.Background(), SystemActor(), name, domain.ManufacturerRegistration{}, domain.AuditResultSuccess, "")
		if err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	count, err := VerifyAuditChain(context.Background(), repo)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 events, got %d", count)
	}

	repo.events[1].Payload = []byte(`{"name":"Mallory"}`)
	if _, err := VerifyAuditChain(context.Background(), repo); err == nil {
		t.Fatal("expected payload tampering to be detected")
	}

	repo.events[1].Payload = []byte(`{"name":"Globex"}`)
	if _, err := VerifyAuditChain(context.Background(), repo); err != nil {
		t.Fatalf("restored chain should verify: %v", err)
	}

	repo.events[2].PrevEventHash = ZeroAuditHash
	if _, err := VerifyAuditChain(context.Background(), repo); err == nil {
		t.Fatal("expected broken link to be detected")
	}
}

func TestCanonicalAuditPayloadSortsKeys(t *testing.T) {
	a, err := CanonicalAuditPayload(map[string]any{"b": 1, "a": "x"})
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	b, err := CanonicalAuditPayload([]byte(`{ "a" : "x", "b" : 1 }`))
	if err != nil {
		t.Fatalf("canonical raw: %v", err)
	}
	if string(a) != `{"a":"x","b":1}` || string(a) != string(b) {
		t.Fatalf("unexpected canonical forms %s %s", a, b)
	}
}

func TestAuditEmitterDisabled(t *testing.T) {
	var emitter *AuditEmitter
	if emitter.Enabled() {
		t.Fatal("nil emitter must be disabled")
	}
	if err := emitter.EmitManufacturerRegistered(context.Background(), SystemActor(), "Acme", domain.ManufacturerRegistration{}, domain.AuditResultSuccess, ""); err != nil {
		t.Fatalf("disabled emitter must drop events: %v", err)
	}
	if _, err := emitter.Emit(context.Background(), domain.AuditEvent{}); err == nil {
		t.Fatal("direct emit without repository must fail")
	}
}
