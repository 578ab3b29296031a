package allocation

import (
	"bytes"
	"context"
	"sort"

	"github.com/propman/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// FIFOAllocationStrategy allocates payments to the oldest outstanding
// invoices first, by due date then by id for a stable order
type FIFOAllocationStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOAllocationStrategy creates a new FIFO allocation strategy
func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo",
			strategy.StrategyTypeAllocation,
			"Allocate payments to oldest invoices first",
		),
	}
}

// Allocate splits the payment across invoices in FIFO order. Each
// invoice receives min(remaining, balance due); anything left after
// the last invoice stays in Remaining as unapplied credit.
func (s *FIFOAllocationStrategy) Allocate(
	ctx context.Context,
	allocCtx strategy.AllocationContext,
	invoices []strategy.OutstandingInvoice,
) (strategy.AllocationResult, error) {
	sorted := make([]strategy.OutstandingInvoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate) {
			return sorted[i].DueDate.Before(sorted[j].DueDate)
		}
		return bytes.Compare(sorted[i].ID[:], sorted[j].ID[:]) < 0
	})

	remaining := allocCtx.PaymentAmount
	allocations := make([]strategy.Allocation, 0)
	totalAllocated := decimal.Zero

	for _, invoice := range sorted {
		if remaining.IsZero() || remaining.IsNegative() {
			break
		}

		if invoice.BalanceDue.IsZero() || invoice.BalanceDue.IsNegative() {
			continue
		}

		allocated := decimal.Min(remaining, invoice.BalanceDue)
		balanceAfter := invoice.BalanceDue.Sub(allocated)

		allocations = append(allocations, strategy.Allocation{
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			Amount:        allocated,
			BalanceBefore: invoice.BalanceDue,
			BalanceAfter:  balanceAfter,
		})

		remaining = remaining.Sub(allocated)
		totalAllocated = totalAllocated.Add(allocated)
	}

	return strategy.AllocationResult{
		Allocations:    allocations,
		TotalAllocated: totalAllocated,
		Remaining:      remaining,
	}, nil
}

// SupportsPartialAllocation returns true as FIFO supports partial allocation
func (s *FIFOAllocationStrategy) SupportsPartialAllocation() bool {
	return true
}
