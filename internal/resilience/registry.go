package resilience

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// One breaker per broker capability, so a failing order API does not stop
// candle fetches.
const (
	Historical = "historical"
	Quotes     = "quotes"
	Orders     = "orders"
)

// Registry hands out named breakers that share Settings.
type Registry struct {
	settings Settings
	logger   zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry(s Settings, logger zerolog.Logger) *Registry {
	return &Registry{settings: s, logger: logger, breakers: map[string]*Breaker{}}
}

// For returns the breaker for name, creating it on first use.
func (r *Registry) For(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = NewBreaker(name, r.settings, r.logger)
		r.breakers[name] = b
	}
	return b
}

// Snapshots returns every breaker's snapshot sorted by name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetAll closes every breaker.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
