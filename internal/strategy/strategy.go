package strategy

import (
	"sort"
	"sync"

	"github.com/moznion/go-optional"

	"github.com/tradecore-lab/tradecore/internal/types"
	"github.com/tradecore-lab/tradecore/pkg/errors"
)

// Strategy turns a symbol's price history into an occasional trade intent.
// The engine calls OnPriceHistory once per bar with that symbol's history in
// timestamp order, newest last. Implementations may keep state between calls;
// each instance observes a single symbol.
type Strategy interface {
	// Name returns a human-readable identifier for logs and reports.
	Name() string
	// OnPriceHistory returns the intent to trade, if any, given the history.
	OnPriceHistory(history []types.PricePoint) optional.Option[types.TradeIntent]
}

// Factory builds a fresh strategy instance from its parameters. Engines call
// it once per symbol so per-symbol state stays isolated.
type Factory func(params map[string]float64) (Strategy, error)

// Registry maps strategy names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in strategies registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}

	// Built-ins never collide on a fresh map.
	_ = r.Register("rsi", func(params map[string]float64) (Strategy, error) {
		return NewRSIFromParams(params)
	})
	_ = r.Register("sma_crossover", func(params map[string]float64) (Strategy, error) {
		return NewSMACrossoverFromParams(params)
	})
	_ = r.Register("momentum", func(params map[string]float64) (Strategy, error) {
		return NewMomentumFromParams(params)
	})

	return r
}

// Register adds a factory under the given name.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[name]; ok {
		return errors.Newf(errors.ErrCodeStrategyAlreadyExists, "strategy %s is already registered", name)
	}

	r.factories[name] = factory

	return nil
}

// Create builds a new instance of the named strategy.
func (r *Registry) Create(name string, params map[string]float64) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy %s, available: %v", name, r.Names())
	}

	return factory(params)
}

// Names returns the registered strategy names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// paramOr reads a named parameter with a fallback for absent keys.
func paramOr(params map[string]float64, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}

	return fallback
}
