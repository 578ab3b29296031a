package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/strategy"
	"github.com/propman/backend/internal/infrastructure/strategy/allocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAllocationStrategy is a minimal strategy for registry tests
type stubAllocationStrategy struct {
	strategy.BaseStrategy
}

func newStubAllocationStrategy(name string) *stubAllocationStrategy {
	return &stubAllocationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(name, strategy.StrategyTypeAllocation, "stub"),
	}
}

func (s *stubAllocationStrategy) Allocate(ctx context.Context, allocCtx strategy.AllocationContext, invoices []strategy.OutstandingInvoice) (strategy.AllocationResult, error) {
	return strategy.AllocationResult{Remaining: allocCtx.PaymentAmount}, nil
}

func (s *stubAllocationStrategy) SupportsPartialAllocation() bool {
	return true
}

func TestStrategyRegistry_RegisterAndGet(t *testing.T) {
	r := NewStrategyRegistry()

	fifo := allocation.NewFIFOAllocationStrategy()
	require.NoError(t, r.RegisterAllocationStrategy(fifo))

	t.Run("get by name", func(t *testing.T) {
		s, err := r.GetAllocationStrategy(fifo.Name())
		require.NoError(t, err)
		assert.Equal(t, fifo.Name(), s.Name())
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		err := r.RegisterAllocationStrategy(allocation.NewFIFOAllocationStrategy())
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("unknown name not found", func(t *testing.T) {
		_, err := r.GetAllocationStrategy("pro-rata")
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty name without default fails", func(t *testing.T) {
		_, err := r.GetAllocationStrategy("")
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestStrategyRegistry_Defaults(t *testing.T) {
	r := NewStrategyRegistry()
	fifo := allocation.NewFIFOAllocationStrategy()
	require.NoError(t, r.RegisterAllocationStrategy(fifo))

	t.Run("default must be registered", func(t *testing.T) {
		err := r.SetDefault(strategy.StrategyTypeAllocation, "unregistered")
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	require.NoError(t, r.SetDefault(strategy.StrategyTypeAllocation, fifo.Name()))

	t.Run("empty name resolves default", func(t *testing.T) {
		s, err := r.GetAllocationStrategy("")
		require.NoError(t, err)
		assert.Equal(t, fifo.Name(), s.Name())
	})

	t.Run("get default name", func(t *testing.T) {
		name, err := r.GetDefault(strategy.StrategyTypeAllocation)
		require.NoError(t, err)
		assert.Equal(t, fifo.Name(), name)
	})

	t.Run("or-default falls back for unknown name", func(t *testing.T) {
		s := r.GetAllocationStrategyOrDefault("does-not-exist")
		require.NotNil(t, s)
		assert.Equal(t, fifo.Name(), s.Name())
	})
}

func TestStrategyRegistry_List(t *testing.T) {
	r := NewStrategyRegistry()
	require.NoError(t, r.RegisterAllocationStrategy(newStubAllocationStrategy("zeta")))
	require.NoError(t, r.RegisterAllocationStrategy(newStubAllocationStrategy("alpha")))

	assert.Equal(t, []string{"alpha", "zeta"}, r.ListAllocationStrategies())
}

func TestNewRegistryWithDefaults(t *testing.T) {
	r, err := NewRegistryWithDefaults()
	require.NoError(t, err)

	s, err := r.GetAllocationStrategy("")
	require.NoError(t, err)
	assert.Equal(t, "fifo", s.Name())
	assert.True(t, s.SupportsPartialAllocation())

	allocCtx := strategy.AllocationContext{PaymentDate: time.Now()}
	result, err := s.Allocate(context.Background(), allocCtx, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Allocations)
}
