// Package auditmem keeps the hash-chained audit log in process memory for
// no-db mode. The chain is lost on restart.
package auditmem

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"eri/internal/domain"
	"eri/internal/usecase"
)

type Log struct {
	mu     sync.Mutex
	now    func() time.Time
	events []storedEvent
}

type storedEvent struct {
	event   domain.AuditEvent
	payload []byte
}

func New() *Log {
	return NewWithClock(nil)
}

func NewWithClock(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

func (l *Log) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	payloadJSON, payloadHash, err := usecase.AuditPayloadHash(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.PayloadHash = payloadHash

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.now()
	}
	event.CreatedAt = event.CreatedAt.UTC()
	event.Seq = int64(len(l.events)) + 1
	event.PrevEventHash = usecase.ZeroAuditHash
	if n := len(l.events); n > 0 {
		event.PrevEventHash = l.events[n-1].event.EventHash
	}
	event.EventHash, err = usecase.ComputeAuditEventHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	l.events = append(l.events, storedEvent{event: event, payload: payloadJSON})
	return event, nil
}

// List returns the events in sequence order with payloads as canonical JSON.
func (l *Log) List(_ context.Context) ([]domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AuditEvent, 0, len(l.events))
	for _, stored := range l.events {
		event := stored.event
		event.Payload = json.RawMessage(append([]byte(nil), stored.payload...))
		out = append(out, event)
	}
	return out, nil
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
