package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"eri/internal/domain"
)

const ZeroAuditHash = "0000000000000000000000000000000000000000000000000000000000000000"

// VerifyAuditChain walks the audit log in sequence order and recomputes every
// payload hash and chain link.
func VerifyAuditChain(ctx context.Context, repo AuditEventRepository) (int, error) {
	if repo == nil {
		return 0, errors.New("audit repository required")
	}
	events, err := repo.List(ctx)
	if err != nil {
		return 0, err
	}

	expectedSeq := int64(1)
	prevHash := ZeroAuditHash
	for _, event := range events {
		if event.Seq != expectedSeq {
			return 0, fmt.Errorf("audit chain seq mismatch: expected %d got %d", expectedSeq, event.Seq)
		}
		if event.PrevEventHash != prevHash {
			return 0, fmt.Errorf("audit chain prev hash mismatch at seq %d", event.Seq)
		}
		payloadJSON, err := CanonicalAuditPayload(event.Payload)
		if err != nil {
			return 0, fmt.Errorf("audit chain payload decode failed at seq %d: %w", event.Seq, err)
		}
		if sha256Hex(payloadJSON) != event.PayloadHash {
			return 0, fmt.Errorf("audit chain payload hash mismatch at seq %d", event.Seq)
		}
		if event.CreatedAt.IsZero() {
			return 0, fmt.Errorf("audit chain missing created_at at seq %d", event.Seq)
		}
		expectedHash, err := ComputeAuditEventHash(event)
		if err != nil {
			return 0, fmt.Errorf("audit chain hash compute failed at seq %d: %w", event.Seq, err)
		}
		if expectedHash != event.EventHash {
			return 0, fmt.Errorf("audit chain hash mismatch at seq %d", event.Seq)
		}
		prevHash = event.EventHash
		expectedSeq++
	}
	return len(events), nil
}

// CanonicalAuditPayload renders a payload as JSON with sorted object keys.
// Stored payloads come back as raw JSON and are normalised the same way.
func CanonicalAuditPayload(payload any) ([]byte, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		raw = []byte("{}")
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func AuditPayloadHash(payload any) ([]byte, string, error) {
	canonical, err := CanonicalAuditPayload(payload)
	if err != nil {
		return nil, "", err
	}
	return canonical, sha256Hex(canonical), nil
}

func ComputeAuditEventHash(event domain.AuditEvent) (string, error) {
	if event.EventType == "" {
		return "", errors.New("audit event missing event_type")
	}
	if event.PayloadHash == "" || event.PrevEventHash == "" {
		return "", errors.New("audit event missing payload_hash or prev_event_hash")
	}
	payload := chainPayload{
		Version:       domain.AuditChainVersion,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	return sha256Hex(payload.CanonicalJSON()), nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

type chainPayload struct {
	Version       string
	Seq           int64
	EventType     string
	PayloadHash   string
	PrevEventHash string
	CreatedAt     string
}

func (c chainPayload) CanonicalJSON() []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeKV(buf, "created_at", c.CreatedAt, false)
	writeKV(buf, "event_type", c.EventType, false)
	writeKV(buf, "payload_hash", c.PayloadHash, false)
	writeKV(buf, "prev_event_hash", c.PrevEventHash, false)
	writeKVNumber(buf, "seq", c.Seq, false)
	writeKV(buf, "v", c.Version, true)
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeKV(buf *bytes.Buffer, key, value string, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	writeJSONString(buf, value)
	if !last {
		buf.WriteByte(',')
	}
}

func writeKVNumber(buf *bytes.Buffer, key string, value int64, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatInt(value, 10))
	if !last {
		buf.WriteByte(',')
	}
}

// Values written here are hashes, event types and RFC 3339 timestamps, so
// only the quote and backslash escapes can occur.
func writeJSONString(buf *bytes.Buffer, value string) {
	buf.WriteByte('"')
	for _, r := range value {
		if r == '"' || r == '\\' {
			buf.WriteByte('\\')
		}
		buf.WriteRune(r)
	}
	buf.WriteByte('"')
}
