package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentReceivedEvent is raised when a payment is recorded
type PaymentReceivedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	PaymentNumber string          `json:"payment_number"`
	LeaseID       uuid.UUID       `json:"lease_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	ReceivedDate  time.Time       `json:"received_date"`
}

// EventType returns the event type name
func (e *PaymentReceivedEvent) EventType() string {
	return "PaymentReceived"
}

// NewPaymentReceivedEvent creates a new PaymentReceivedEvent
func NewPaymentReceivedEvent(p *Payment) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentReceived", "Payment", p.ID),
		PaymentID:       p.ID,
		PaymentNumber:   p.PaymentNumber,
		LeaseID:         p.LeaseID,
		Amount:          p.Amount,
		Method:          p.Method,
		ReceivedDate:    p.ReceivedDate,
	}
}

// PaymentAppliedEvent is raised when part of a payment is allocated to
// an invoice
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	PaymentNumber string          `json:"payment_number"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
	Unapplied     decimal.Decimal `json:"unapplied_amount"`
}

// EventType returns the event type name
func (e *PaymentAppliedEvent) EventType() string {
	return "PaymentApplied"
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(p *Payment, invoiceID uuid.UUID, applied valueobject.Money) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentApplied", "Payment", p.ID),
		PaymentID:       p.ID,
		PaymentNumber:   p.PaymentNumber,
		InvoiceID:       invoiceID,
		AppliedAmount:   applied.Amount(),
		Unapplied:       p.UnappliedAmount,
	}
}
