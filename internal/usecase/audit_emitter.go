package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"eri/internal/domain"
)

// AuditEmitter appends events to the hash-chained audit log. A nil emitter
// or one without a repository drops events, which is how no-db mode runs.
type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{
		Repo:  repo,
		Clock: clock,
	}
}

func (e *AuditEmitter) Enabled() bool {
	return e != nil && e.Repo != nil
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if !e.Enabled() {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.EventType == "" || event.TargetType == "" || event.Result == "" || event.ActorType == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) EmitCertificateSigned(ctx context.Context, actor Actor, cert domain.Certificate, digest common.Hash, signer common.Address, result domain.AuditResult, errorCode string) error {
	if !e.Enabled() {
		return nil
	}
	payload := map[string]any{
		"unique_id": cert.UniqueID,
		"serial":    cert.Serial,
		"owner":     hexAddress(cert.Owner),
		"signer":    hexAddress(signer),
	}
	if digest != (common.Hash{}) {
		payload["digest"] = digest.Hex()
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		ActorType:   actor.kind(),
		ActorIDHash: hashString(actor.ID),
		EventType:   domain.AuditEventCertificateSigned,
		Payload:     payload,
		TargetType:  domain.AuditTargetCertificate,
		TargetID:    cert.UniqueID,
		Result:      result,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitCertificateVerified(ctx context.Context, actor Actor, uniqueID string, verdict domain.Verdict) error {
	if !e.Enabled() {
		return nil
	}
	payload := map[string]any{
		"variant": string(verdict.Variant),
		"outcome": string(verdict.Outcome),
	}
	if verdict.Digest != (common.Hash{}) {
		payload["digest"] = verdict.Digest.Hex()
	}
	if verdict.RecoveredSigner != nil {
		payload["signer"] = hexAddress(*verdict.RecoveredSigner)
	}
	result := domain.AuditResultSuccess
	errorCode := ""
	if verdict.Rejected() {
		result = domain.AuditResultFailure
		errorCode = string(verdict.RejectReason)
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		ActorType:   actor.kind(),
		ActorIDHash: hashString(actor.ID),
		EventType:   domain.AuditEventCertificateVerified,
		Payload:     payload,
		TargetType:  domain.AuditTargetCertificate,
		TargetID:    uniqueID,
		Result:      result,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitManufacturerRegistered(ctx context.Context, actor Actor, name string, registration domain.ManufacturerRegistration, result domain.AuditResult, errorCode string) error {
	if !e.Enabled() {
		return nil
	}
	payload := map[string]any{
		"name": name,
	}
	targetID := ""
	if registration.ManufacturerAddress != (common.Address{}) {
		targetID = hexAddress(registration.ManufacturerAddress)
		payload["manufacturer_address"] = targetID
		payload["manufacturer_contract"] = hexAddress(registration.ManufacturerContract)
		payload["tx_hash"] = registration.TxHash.Hex()
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		ActorType:   actor.kind(),
		ActorIDHash: hashString(actor.ID),
		EventType:   domain.AuditEventManufacturerRegistered,
		Payload:     payload,
		TargetType:  domain.AuditTargetManufacturer,
		TargetID:    targetID,
		Result:      result,
		ErrorCode:   errorCode,
	})
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// Actor identifies who triggered an operation. ID is hashed before it is
// stored.
type Actor struct {
	Type domain.AuditActorType
	ID   string
}

func SystemActor() Actor {
	return Actor{Type: domain.AuditActorSystem}
}

func hashString(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func hexAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func (a Actor) kind() domain.AuditActorType {
	if a.Type == "" {
		return domain.AuditActorSystem
	}
	return a.Type
}
