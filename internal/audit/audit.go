// Package audit appends trail entries for every mutating operation.
// Recording is best-effort: a failed write is logged and dropped, it never
// blocks or fails the request that triggered it.
package audit

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskboard/internal/model"
)

// Audit actions
const (
	ActionLogin          = "LOGIN"
	ActionRegisterTenant = "REGISTER_TENANT"
	ActionCreate         = "CREATE"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionClaim          = "CLAIM"
	ActionStatusChange   = "STATUS_CHANGE"
)

// Recorder writes audit entries through the shared connection handle
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRecorder creates a Recorder bound to the given database handle
func NewRecorder(db *gorm.DB, log *zap.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record appends one entry. tenantID and userID are nullable so system
// actions and pre-authentication events can be recorded too.
func (r *Recorder) Record(tenantID, userID *uuid.UUID, action, entityType, entityID, sourceAddress string) {
	entry := model.AuditEntry{
		TenantID:      tenantID,
		UserID:        userID,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		SourceAddress: sourceAddress,
	}

	if result := r.db.Create(&entry); result.Error != nil {
		r.log.Warn("Failed to write audit entry",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Error(result.Error))
	}
}
