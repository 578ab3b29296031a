package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/strategy"
)

// StrategyRegistry manages payment allocation strategy registrations.
// Lookup by name lets callers select an allocation policy per request
// while falling back to the configured default.
type StrategyRegistry struct {
	mu                   sync.RWMutex
	allocationStrategies map[string]strategy.PaymentAllocationStrategy
	defaults             map[strategy.StrategyType]string
}

// NewStrategyRegistry creates a new strategy registry
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		allocationStrategies: make(map[string]strategy.PaymentAllocationStrategy),
		defaults:             make(map[strategy.StrategyType]string),
	}
}

// RegisterAllocationStrategy registers a payment allocation strategy
func (r *StrategyRegistry) RegisterAllocationStrategy(s strategy.PaymentAllocationStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.allocationStrategies[name]; exists {
		return fmt.Errorf("%w: allocation strategy '%s' already registered", shared.ErrAlreadyExists, name)
	}
	r.allocationStrategies[name] = s
	return nil
}

// GetAllocationStrategy returns an allocation strategy by name, or the default if name is empty
func (r *StrategyRegistry) GetAllocationStrategy(name string) (strategy.PaymentAllocationStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaults[strategy.StrategyTypeAllocation]
		if name == "" {
			return nil, fmt.Errorf("%w: no default allocation strategy set", shared.ErrNotFound)
		}
	}

	s, exists := r.allocationStrategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: allocation strategy '%s' not found", shared.ErrNotFound, name)
	}
	return s, nil
}

// GetAllocationStrategyOrDefault returns an allocation strategy by name, or the default if not found
func (r *StrategyRegistry) GetAllocationStrategyOrDefault(name string) strategy.PaymentAllocationStrategy {
	s, err := r.GetAllocationStrategy(name)
	if err != nil {
		s, _ = r.GetAllocationStrategy("")
	}
	return s
}

// SetDefault sets the default strategy for a strategy type
func (r *StrategyRegistry) SetDefault(strategyType strategy.StrategyType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRegisteredLocked(strategyType, name) {
		return fmt.Errorf("%w: strategy '%s' of type '%s' not found", shared.ErrNotFound, name, strategyType)
	}

	r.defaults[strategyType] = name
	return nil
}

// GetDefault returns the name of the default strategy for a strategy type
func (r *StrategyRegistry) GetDefault(strategyType strategy.StrategyType) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, exists := r.defaults[strategyType]
	if !exists {
		return "", fmt.Errorf("%w: no default set for strategy type '%s'", shared.ErrNotFound, strategyType)
	}
	return name, nil
}

// ListAllocationStrategies returns the names of all registered allocation strategies
func (r *StrategyRegistry) ListAllocationStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.allocationStrategies))
	for name := range r.allocationStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isRegisteredLocked checks registration without taking the lock.
// Caller must hold at least a read lock.
func (r *StrategyRegistry) isRegisteredLocked(strategyType strategy.StrategyType, name string) bool {
	switch strategyType {
	case strategy.StrategyTypeAllocation:
		_, exists := r.allocationStrategies[name]
		return exists
	default:
		return false
	}
}
