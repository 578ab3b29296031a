package strategy

import (
	"github.com/propman/backend/internal/domain/shared/strategy"
	"github.com/propman/backend/internal/infrastructure/strategy/allocation"
)

// NewRegistryWithDefaults creates a new registry with the built-in
// allocation strategies registered. FIFO (oldest due date first) is the
// default allocation policy.
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	fifoAlloc := allocation.NewFIFOAllocationStrategy()
	if err := r.RegisterAllocationStrategy(fifoAlloc); err != nil {
		return nil, err
	}

	if err := r.SetDefault(strategy.StrategyTypeAllocation, fifoAlloc.Name()); err != nil {
		return nil, err
	}

	return r, nil
}
