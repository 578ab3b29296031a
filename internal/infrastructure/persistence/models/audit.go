package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuditDetail holds arbitrary structured context for an audit entry,
// stored as JSONB
type AuditDetail map[string]interface{}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (d AuditDetail) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (d *AuditDetail) Scan(value interface{}) error {
	if value == nil {
		*d = AuditDetail{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan AuditDetail: unsupported type")
	}

	if len(bytes) == 0 {
		*d = AuditDetail{}
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// AuditLogModel is the persistence model for the append-only audit
// trail. Rows are never updated or deleted.
type AuditLogModel struct {
	ID         uuid.UUID   `gorm:"type:uuid;primary_key"`
	Action     string      `gorm:"type:varchar(50);not null;index"`
	EntityType string      `gorm:"type:varchar(50);not null;index:idx_audit_entity"`
	EntityID   uuid.UUID   `gorm:"type:uuid;not null;index:idx_audit_entity"`
	ActorID    *uuid.UUID  `gorm:"type:uuid;index"`
	Detail     AuditDetail `gorm:"type:jsonb;default:'{}'"`
	OccurredAt time.Time   `gorm:"not null;index"`
	CreatedAt  time.Time   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}
