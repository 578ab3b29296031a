package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormAuditRecorder writes audit entries to the audit_logs table.
// Recording is best-effort: failures are logged at warn level and
// swallowed so they never fail the business operation that produced
// the entry.
type GormAuditRecorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormAuditRecorder creates a new GormAuditRecorder
func NewGormAuditRecorder(db *gorm.DB, logger *zap.Logger) *GormAuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormAuditRecorder{db: db, logger: logger}
}

// Record appends one audit entry. Errors are swallowed after logging.
func (r *GormAuditRecorder) Record(ctx context.Context, entry billing.AuditEntry) {
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	model := models.AuditLogModel{
		ID:         uuid.New(),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		Detail:     models.AuditDetail(entry.Detail),
		OccurredAt: occurredAt,
		CreatedAt:  time.Now(),
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		r.logger.Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID.String()),
			zap.Error(err),
		)
	}
}

// Ensure GormAuditRecorder implements billing.AuditRecorder
var _ billing.AuditRecorder = (*GormAuditRecorder)(nil)
