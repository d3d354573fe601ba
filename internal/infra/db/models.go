package db

import "time"

type AuditEventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	Seq           int64     `gorm:"uniqueIndex;not null"`
	EventType     string    `gorm:"index;not null"`
	PayloadJSON   []byte    `gorm:"column:payload_json;type:jsonb;not null"`
	PayloadHash   string    `gorm:"not null"`
	ActorType     string    `gorm:"not null"`
	ActorIDHash   *string   `gorm:"column:actor_id_hash"`
	TargetType    string    `gorm:"not null"`
	TargetID      *string   `gorm:"index"`
	Result        string    `gorm:"not null"`
	ErrorCode     *string   `gorm:"column:error_code"`
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"uniqueIndex;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string { return "audit_events" }

// AuditSeqModel is the single-row counter that serialises appends.
type AuditSeqModel struct {
	ID  int   `gorm:"primaryKey"`
	Seq int64 `gorm:"not null"`
}

func (AuditSeqModel) TableName() string { return "audit_seq" }
