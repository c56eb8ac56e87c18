package strategy

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/abhishekslab/growwbot/internal/errors"
)

// Constructor builds a fresh evaluator instance.
type Constructor func() Evaluator

type entry struct {
	info Info
	ctor Constructor
}

// Registry maps algo IDs to constructors. New always returns a fresh
// instance so concurrent workers never share evaluator state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// DefaultRegistry returns a registry holding the built-in strategies.
func DefaultRegistry() *Registry {
	return NewRegistryWithParams(DefaultMomentumParams(), DefaultMeanReversionParams())
}

// NewRegistryWithParams returns the built-ins tuned with the given thresholds.
func NewRegistryWithParams(mom MomentumParams, mr MeanReversionParams) *Registry {
	r := NewRegistry()
	r.Register(Info{
		ID:          MomentumScalpID,
		Name:        "Momentum Scalping",
		Description: "EMA crossover + RSI + volume confirmation",
		Version:     "1.0",
	}, func() Evaluator { return NewMomentumScalp(mom) })
	r.Register(Info{
		ID:          MeanReversionID,
		Name:        "Mean Reversion",
		Description: "Buy oversold stocks below VWAP with volume spike, target VWAP",
		Version:     "1.0",
	}, func() Evaluator { return NewMeanReversion(mr) })
	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(info Info, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.ID] = entry{info: info, ctor: ctor}
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// New returns a fresh evaluator for id.
func (r *Registry) New(id string) (Evaluator, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrStrategyNotFound, id)
	}
	return e.ctor(), nil
}

// List returns registered strategies sorted by ID.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
