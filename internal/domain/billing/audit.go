package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for billing mutations
const (
	AuditActionInvoiceCreated = "invoice.created"
	AuditActionInvoiceUpdated = "invoice.updated"
	AuditActionInvoiceIssued  = "invoice.issued"
	AuditActionInvoiceVoided  = "invoice.voided"
	AuditActionPaymentCreated = "payment.created"
	AuditActionPaymentApplied = "payment.applied"
)

// AuditEntry is one immutable record of a billing mutation
type AuditEntry struct {
	Action     string
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Detail     map[string]interface{}
	OccurredAt time.Time
}

// AuditRecorder writes audit entries. Recording is best-effort: a
// failed write must never fail the business operation that produced
// it, so implementations log and swallow their own errors.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// NopAuditRecorder discards all entries
type NopAuditRecorder struct{}

// Record implements AuditRecorder
func (NopAuditRecorder) Record(ctx context.Context, entry AuditEntry) {}
