package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLogModel{}))
	return db
}

func TestGormAuditRecorder_Record(t *testing.T) {
	db := setupAuditTestDB(t)
	recorder := NewGormAuditRecorder(db, nil)

	entityID := uuid.New()
	actorID := uuid.New()
	occurredAt := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	recorder.Record(context.Background(), billing.AuditEntry{
		Action:     billing.AuditActionInvoiceCreated,
		EntityType: "invoice",
		EntityID:   entityID,
		ActorID:    &actorID,
		Detail:     map[string]any{"billing_month": "2026-03", "total": "1500.00"},
		OccurredAt: occurredAt,
	})

	var logs []models.AuditLogModel
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, billing.AuditActionInvoiceCreated, logs[0].Action)
	assert.Equal(t, entityID, logs[0].EntityID)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, actorID, *logs[0].ActorID)
	assert.Equal(t, "2026-03", logs[0].Detail["billing_month"])
	assert.Equal(t, occurredAt.Unix(), logs[0].OccurredAt.Unix())
}

func TestGormAuditRecorder_DefaultsOccurredAt(t *testing.T) {
	db := setupAuditTestDB(t)
	recorder := NewGormAuditRecorder(db, nil)

	recorder.Record(context.Background(), billing.AuditEntry{
		Action:     billing.AuditActionPaymentCreated,
		EntityType: "payment",
		EntityID:   uuid.New(),
	})

	var logs []models.AuditLogModel
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.WithinDuration(t, time.Now(), logs[0].OccurredAt, 5*time.Second)
}

func TestGormAuditRecorder_SwallowsWriteErrors(t *testing.T) {
	db := setupAuditTestDB(t)
	// drop the table so the insert fails
	require.NoError(t, db.Migrator().DropTable(&models.AuditLogModel{}))

	core, observed := observer.New(zapcore.WarnLevel)
	recorder := NewGormAuditRecorder(db, zap.New(core))

	// must not panic or surface the error
	recorder.Record(context.Background(), billing.AuditEntry{
		Action:     billing.AuditActionPaymentApplied,
		EntityType: "payment",
		EntityID:   uuid.New(),
	})

	entries := observed.FilterMessage("failed to record audit entry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, billing.AuditActionPaymentApplied, entries[0].ContextMap()["action"])
}
