package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"eri/internal/domain"
	"eri/internal/usecase"
)

const auditSeqRowID = 1

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	// postgres keeps microseconds; hash what will be read back.
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	payloadJSON, payloadHash, err := usecase.AuditPayloadHash(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.PayloadHash = payloadHash

	var out domain.AuditEvent
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prevHash, err := nextAuditSeq(ctx, tx)
		if err != nil {
			return err
		}
		event.Seq = seq
		event.PrevEventHash = prevHash

		eventHash, err := usecase.ComputeAuditEventHash(event)
		if err != nil {
			return err
		}
		event.EventHash = eventHash

		model := auditEventModelFromDomain(event, payloadJSON)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = event
		return nil
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return out, nil
}

func (r *AuditEventRepository) List(ctx context.Context) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		out = append(out, auditEventFromModel(model))
	}
	return out, nil
}

func auditEventModelFromDomain(event domain.AuditEvent, payloadJSON []byte) AuditEventModel {
	return AuditEventModel{
		ID:            event.ID,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		PayloadJSON:   payloadJSON,
		PayloadHash:   event.PayloadHash,
		ActorType:     string(event.ActorType),
		ActorIDHash:   stringPtrIfNotEmpty(event.ActorIDHash),
		TargetType:    string(event.TargetType),
		TargetID:      stringPtrIfNotEmpty(event.TargetID),
		Result:        string(event.Result),
		ErrorCode:     stringPtrIfNotEmpty(event.ErrorCode),
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC(),
	}
}

// auditEventFromModel returns the payload as raw JSON so that chain
// verification hashes exactly the stored bytes after canonicalisation.
func auditEventFromModel(model AuditEventModel) domain.AuditEvent {
	return domain.AuditEvent{
		ID:            model.ID,
		Seq:           model.Seq,
		EventType:     domain.AuditEventType(model.EventType),
		Payload:       json.RawMessage(model.PayloadJSON),
		PayloadHash:   model.PayloadHash,
		ActorType:     domain.AuditActorType(model.ActorType),
		ActorIDHash:   stringValue(model.ActorIDHash),
		TargetType:    domain.AuditTargetType(model.TargetType),
		TargetID:      stringValue(model.TargetID),
		Result:        domain.AuditResult(model.Result),
		ErrorCode:     stringValue(model.ErrorCode),
		PrevEventHash: model.PrevEventHash,
		EventHash:     model.EventHash,
		CreatedAt:     model.CreatedAt.UTC(),
	}
}

func nextAuditSeq(ctx context.Context, tx *gorm.DB) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO audit_seq (id, seq) VALUES (?, 0) ON CONFLICT (id) DO NOTHING",
		auditSeqRowID,
	).Error; err != nil {
		return 0, "", err
	}

	var currentSeq int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM audit_seq WHERE id = ? FOR UPDATE",
		auditSeqRowID,
	).Scan(&currentSeq).Error; err != nil {
		return 0, "", err
	}
	nextSeq := currentSeq + 1
	if err := tx.WithContext(ctx).Exec(
		"UPDATE audit_seq SET seq = ? WHERE id = ?",
		nextSeq,
		auditSeqRowID,
	).Error; err != nil {
		return 0, "", err
	}

	prevHash := usecase.ZeroAuditHash
	if currentSeq > 0 {
		var prev AuditEventModel
		if err := tx.WithContext(ctx).Where("seq = ?", currentSeq).Take(&prev).Error; err != nil {
			return 0, "", err
		}
		prevHash = prev.EventHash
	}
	if prevHash == "" {
		return 0, "", fmt.Errorf("missing previous event hash at seq %d", currentSeq)
	}
	return nextSeq, prevHash, nil
}
