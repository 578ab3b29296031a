package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outstanding(number string, dueDate time.Time, balance string) strategy.OutstandingInvoice {
	bal := decimal.RequireFromString(balance)
	return strategy.OutstandingInvoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		DueDate:       dueDate,
		TotalAmount:   bal,
		AmountPaid:    decimal.Zero,
		BalanceDue:    bal,
	}
}

func allocCtx(amount string) strategy.AllocationContext {
	return strategy.AllocationContext{
		LeaseID:       uuid.New(),
		PaymentAmount: decimal.RequireFromString(amount),
		PaymentDate:   time.Now(),
	}
}

func TestFIFOAllocation_OldestFirst(t *testing.T) {
	s := NewFIFOAllocationStrategy()

	older := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// $250 against $200 (older) and $300 (newer):
	// the older invoice is settled, the newer keeps $250 due
	invA := outstanding("INV-A", older, "200.00")
	invB := outstanding("INV-B", newer, "300.00")

	result, err := s.Allocate(context.Background(), allocCtx("250.00"), []strategy.OutstandingInvoice{invB, invA})

	require.NoError(t, err)
	require.Len(t, result.Allocations, 2)

	assert.Equal(t, "INV-A", result.Allocations[0].InvoiceNumber)
	assert.Equal(t, "200.00", result.Allocations[0].Amount.StringFixed(2))
	assert.Equal(t, "0.00", result.Allocations[0].BalanceAfter.StringFixed(2))

	assert.Equal(t, "INV-B", result.Allocations[1].InvoiceNumber)
	assert.Equal(t, "50.00", result.Allocations[1].Amount.StringFixed(2))
	assert.Equal(t, "250.00", result.Allocations[1].BalanceAfter.StringFixed(2))

	assert.Equal(t, "250.00", result.TotalAllocated.StringFixed(2))
	assert.True(t, result.Remaining.IsZero())
}

func TestFIFOAllocation_OverpaymentLeavesRemainder(t *testing.T) {
	s := NewFIFOAllocationStrategy()

	inv := outstanding("INV-A", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "300.00")

	result, err := s.Allocate(context.Background(), allocCtx("500.00"), []strategy.OutstandingInvoice{inv})

	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "300.00", result.TotalAllocated.StringFixed(2))
	assert.Equal(t, "200.00", result.Remaining.StringFixed(2))
}

func TestFIFOAllocation_NoOutstandingInvoices(t *testing.T) {
	s := NewFIFOAllocationStrategy()

	result, err := s.Allocate(context.Background(), allocCtx("100.00"), nil)

	require.NoError(t, err)
	assert.Empty(t, result.Allocations)
	assert.True(t, result.TotalAllocated.IsZero())
	assert.Equal(t, "100.00", result.Remaining.StringFixed(2))
}

func TestFIFOAllocation_SkipsZeroBalances(t *testing.T) {
	s := NewFIFOAllocationStrategy()

	settled := outstanding("INV-A", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "0.00")
	open := outstanding("INV-B", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "100.00")

	result, err := s.Allocate(context.Background(), allocCtx("100.00"), []strategy.OutstandingInvoice{settled, open})

	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "INV-B", result.Allocations[0].InvoiceNumber)
}

func TestFIFOAllocation_SameDueDateTieBreaksByID(t *testing.T) {
	s := NewFIFOAllocationStrategy()

	due := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	invA := outstanding("INV-A", due, "100.00")
	invB := outstanding("INV-B", due, "100.00")

	result, err := s.Allocate(context.Background(), allocCtx("100.00"), []strategy.OutstandingInvoice{invA, invB})

	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)

	// the invoice with the lexicographically smaller id gets paid first
	wantFirst := invA
	if uuidLess(invB.ID, invA.ID) {
		wantFirst = invB
	}
	assert.Equal(t, wantFirst.ID, result.Allocations[0].InvoiceID)
}

func uuidLess(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func TestFIFOAllocation_Metadata(t *testing.T) {
	s := NewFIFOAllocationStrategy()

	assert.Equal(t, "fifo", s.Name())
	assert.Equal(t, strategy.StrategyTypeAllocation, s.Type())
	assert.True(t, s.SupportsPartialAllocation())
}
