package domain

import "time"

type AuditActorType string

const (
	AuditChainVersion = "audit_chain_v0"

	AuditActorSystem      AuditActorType = "system"
	AuditActorAdminAPIKey AuditActorType = "admin_api_key"
	AuditActorClient      AuditActorType = "client"
)

type AuditEventType string

const (
	AuditEventCertificateSigned      AuditEventType = "certificate_signed"
	AuditEventCertificateVerified    AuditEventType = "certificate_verified"
	AuditEventManufacturerRegistered AuditEventType = "manufacturer_registered"
)

type AuditTargetType string

const (
	AuditTargetCertificate  AuditTargetType = "certificate"
	AuditTargetManufacturer AuditTargetType = "manufacturer"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditEvent is one link of the hash-chained audit log. Payload never
// carries key material.
type AuditEvent struct {
	ID            string
	Seq           int64
	EventType     AuditEventType
	Payload       any
	PayloadHash   string
	ActorType     AuditActorType
	ActorIDHash   string
	TargetType    AuditTargetType
	TargetID      string
	Result        AuditResult
	ErrorCode     string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
