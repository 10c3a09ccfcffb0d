package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEntry is an append-only trail row. The application never updates or
// deletes entries; tenant and user references stay nullable so system-level
// actions and anonymous failures can be recorded too.
type AuditEntry struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      *uuid.UUID `json:"tenant_id" gorm:"type:uuid;index"`
	UserID        *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action        string     `json:"action" gorm:"type:varchar(100);not null"`
	EntityType    string     `json:"entity_type" gorm:"type:varchar(100)"`
	EntityID      string     `json:"entity_id" gorm:"type:varchar(100)"`
	SourceAddress string     `json:"source_address" gorm:"type:varchar(100)"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
