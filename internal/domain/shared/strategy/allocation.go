package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutstandingInvoice is the allocation view of an invoice with a balance due
type OutstandingInvoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	DueDate       time.Time
	TotalAmount   decimal.Decimal
	AmountPaid    decimal.Decimal
	BalanceDue    decimal.Decimal
}

// Allocation represents a payment allocation to a single invoice
type Allocation struct {
	InvoiceID     uuid.UUID
	InvoiceNumber string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// AllocationContext provides context for payment allocation
type AllocationContext struct {
	LeaseID       uuid.UUID
	PaymentAmount decimal.Decimal
	PaymentDate   time.Time
}

// AllocationResult contains the result of payment allocation
type AllocationResult struct {
	Allocations    []Allocation
	TotalAllocated decimal.Decimal
	Remaining      decimal.Decimal
}

// PaymentAllocationStrategy defines how a tendered amount is split
// across a lease's outstanding invoices
type PaymentAllocationStrategy interface {
	Strategy
	// Allocate allocates a payment amount across outstanding invoices
	Allocate(ctx context.Context, allocCtx AllocationContext, invoices []OutstandingInvoice) (AllocationResult, error)
	// SupportsPartialAllocation returns true if the strategy supports partial allocation
	SupportsPartialAllocation() bool
}
