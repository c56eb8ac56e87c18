// Package resilience guards broker calls with circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/abhishekslab/growwbot/internal/errors"
)

// State is the position of a breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen is returned without calling the broker while a breaker is open.
var ErrOpen = apperrors.ErrCircuitOpen

// Settings tunes a breaker.
type Settings struct {
	// TripAfter consecutive failures open the breaker.
	TripAfter int
	// Trials successful half-open calls close it again.
	Trials int
	// Cooldown is how long an open breaker rejects calls.
	Cooldown time.Duration
}

// DefaultSettings trips after 5 failures and retries after 30s.
func DefaultSettings() Settings {
	return Settings{TripAfter: 5, Trials: 2, Cooldown: 30 * time.Second}
}

// Snapshot is a point-in-time view of one breaker.
type Snapshot struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	Calls       int64     `json:"calls"`
	Failures    int64     `json:"failures"`
	Rejected    int64     `json:"rejected"`
	Streak      int       `json:"streak"`
	LastFailure time.Time `json:"last_failure"`
	Since       time.Time `json:"since"`
}

// FailureRate is the share of calls that failed, in percent.
func (s Snapshot) FailureRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Calls) * 100
}

// Breaker stops calling a failing broker capability until it cools down.
type Breaker struct {
	name     string
	settings Settings
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	snap   Snapshot
	trials int
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, s Settings, logger zerolog.Logger) *Breaker {
	s.TripAfter = max(s.TripAfter, 1)
	s.Trials = max(s.Trials, 1)
	b := &Breaker{
		name:     name,
		settings: s,
		logger:   logger.With().Str("breaker", name).Logger(),
		now:      time.Now,
	}
	b.snap = Snapshot{Name: name, State: StateClosed, Since: b.now()}
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// Do runs fn under b.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn under b and returns its result. A cancelled context is the
// caller giving up, so it counts as neither success nor failure.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.admit() {
		return zero, ErrOpen
	}
	v, err := fn(ctx)
	if errors.Is(err, context.Canceled) {
		return zero, err
	}
	b.record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.snap.Calls++
	if b.snap.State != StateOpen {
		return true
	}
	if b.now().Sub(b.snap.LastFailure) > b.settings.Cooldown {
		b.move(StateHalfOpen)
		return true
	}
	b.snap.Rejected++
	return false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.snap.State {
		case StateHalfOpen:
			b.trials++
			if b.trials >= b.settings.Trials {
				b.move(StateClosed)
			}
		case StateClosed:
			b.snap.Streak = 0
		}
		return
	}

	b.snap.Failures++
	b.snap.LastFailure = b.now()
	switch b.snap.State {
	case StateClosed:
		b.snap.Streak++
		if b.snap.Streak >= b.settings.TripAfter {
			b.logger.Warn().Err(err).Int("streak", b.snap.Streak).Msg("broker breaker tripped")
			b.move(StateOpen)
		}
	case StateHalfOpen:
		b.logger.Warn().Err(err).Msg("broker trial call failed, reopening breaker")
		b.move(StateOpen)
	}
}

// move must be called with mu held.
func (b *Breaker) move(to State) {
	if to == StateClosed && b.snap.State != StateClosed {
		b.logger.Info().Str("from", string(b.snap.State)).Msg("broker breaker closed")
	}
	b.snap.State = to
	b.snap.Since = b.now()
	b.snap.Streak = 0
	b.trials = 0
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap.State
}

// Snapshot returns a copy of the breaker counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

// Reset closes the breaker and keeps its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.move(StateClosed)
}
