package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodACH          PaymentMethod = "ach"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks whether the payment method is a known value
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCheck, PaymentMethodBankTransfer,
		PaymentMethodCard, PaymentMethodACH, PaymentMethodOther:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentApplication records a portion of a payment applied to one invoice.
// A payment may be split across several invoices; each split is its own row.
type PaymentApplication struct {
	shared.BaseEntity
	PaymentID     uuid.UUID       `json:"payment_id" gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID       `json:"invoice_id" gorm:"type:uuid;not null;index"`
	AppliedAmount decimal.Decimal `json:"applied_amount" gorm:"type:decimal(15,2);not null"`
	AppliedAt     time.Time       `json:"applied_at" gorm:"not null"`
}

// Payment represents money received from a tenant against a lease.
// Allocation across invoices is recorded as PaymentApplication rows;
// the unapplied remainder stays on the payment as a credit.
type Payment struct {
	shared.BaseAggregateRoot
	PaymentNumber   string               `json:"payment_number" gorm:"uniqueIndex;not null"`
	LeaseID         uuid.UUID            `json:"lease_id" gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal      `json:"amount" gorm:"type:decimal(15,2);not null"`
	Currency        string               `json:"currency" gorm:"type:varchar(3);not null;default:'USD'"`
	AppliedAmount   decimal.Decimal      `json:"applied_amount" gorm:"type:decimal(15,2);not null;default:0"`
	UnappliedAmount decimal.Decimal      `json:"unapplied_amount" gorm:"type:decimal(15,2);not null;default:0"`
	Method          PaymentMethod        `json:"method" gorm:"type:varchar(20);not null"`
	ReceivedDate    time.Time            `json:"received_date" gorm:"not null"`
	Reference       string               `json:"reference"`
	Notes           string               `json:"notes"`
	Applications    []PaymentApplication `json:"applications" gorm:"-"`
}

// NewPayment creates a payment in the received state, with the full
// amount unapplied
func NewPayment(leaseID uuid.UUID, paymentNumber string, amount valueobject.Money, method PaymentMethod, receivedDate time.Time, reference string) (*Payment, error) {
	if leaseID == uuid.Nil {
		return nil, shared.NewValidationError("Lease ID cannot be empty")
	}
	if paymentNumber == "" {
		return nil, shared.NewValidationError("Payment number cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid payment method %q", method))
	}
	if receivedDate.IsZero() {
		receivedDate = time.Now()
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentNumber:     paymentNumber,
		LeaseID:           leaseID,
		Amount:            amount.Amount(),
		Currency:          string(amount.Currency()),
		AppliedAmount:     decimal.Zero,
		UnappliedAmount:   amount.Amount(),
		Method:            method,
		ReceivedDate:      receivedDate,
		Reference:         reference,
	}

	p.AddDomainEvent(NewPaymentReceivedEvent(p))
	return p, nil
}

// ApplyToInvoice records an allocation of part of this payment to an
// invoice. The applied total across all applications can never exceed
// the payment amount.
func (p *Payment) ApplyToInvoice(invoiceID uuid.UUID, amount valueobject.Money, appliedAt time.Time) (*PaymentApplication, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewValidationError("Invoice ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("Applied amount must be positive")
	}
	if amount.Amount().GreaterThan(p.UnappliedAmount) {
		return nil, shared.NewStateError(fmt.Sprintf(
			"applied amount %s exceeds unapplied balance %s on payment %s",
			amount.Amount().StringFixed(2), p.UnappliedAmount.StringFixed(2), p.PaymentNumber))
	}
	if appliedAt.IsZero() {
		appliedAt = time.Now()
	}

	app := PaymentApplication{
		BaseEntity:    shared.NewBaseEntity(),
		PaymentID:     p.ID,
		InvoiceID:     invoiceID,
		AppliedAmount: amount.Amount(),
		AppliedAt:     appliedAt,
	}
	p.Applications = append(p.Applications, app)
	p.AppliedAmount = p.AppliedAmount.Add(amount.Amount())
	p.UnappliedAmount = p.Amount.Sub(p.AppliedAmount)
	p.UpdatedAt = time.Now()

	p.AddDomainEvent(NewPaymentAppliedEvent(p, invoiceID, amount))
	return &p.Applications[len(p.Applications)-1], nil
}

// IsFullyApplied reports whether the whole payment has been allocated
func (p *Payment) IsFullyApplied() bool {
	return p.UnappliedAmount.IsZero()
}

// HasUnappliedCredit reports whether any amount remains unallocated
func (p *Payment) HasUnappliedCredit() bool {
	return p.UnappliedAmount.IsPositive()
}

// GetAmountMoney returns the payment amount as a money value
func (p *Payment) GetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, valueobject.Currency(p.Currency))
	return m
}

// GetUnappliedMoney returns the unapplied remainder as a money value
func (p *Payment) GetUnappliedMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.UnappliedAmount, valueobject.Currency(p.Currency))
	return m
}

// GetAppliedMoney returns the applied total as a money value
func (p *Payment) GetAppliedMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.AppliedAmount, valueobject.Currency(p.Currency))
	return m
}
