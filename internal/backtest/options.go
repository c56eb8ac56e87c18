package backtest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/candlecache"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/store"
	"github.com/abhishekslab/growwbot/internal/trading"
)

// CandleSource loads sorted, de-duplicated candles for a request.
// *candlecache.Cache satisfies it.
type CandleSource interface {
	GetCandles(ctx context.Context, req candlecache.Request) ([]models.Candle, error)
}

// WarmupBars is the number of bars an engine walks before asking the
// evaluator for a signal.
const WarmupBars = 30

type options struct {
	policy    trading.TiePolicy
	calendar  *trading.Calendar
	snapshots store.SnapshotStore
	logger    zerolog.Logger
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		policy:   trading.TieProximity,
		calendar: trading.NewCalendar(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

// Option configures an engine.
type Option func(*options)

// WithTiePolicy sets how a bar touching both stop and target is resolved.
func WithTiePolicy(p trading.TiePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithCalendar sets the trading-day calendar of the daily-picks engine.
func WithCalendar(c *trading.Calendar) Option {
	return func(o *options) {
		if c != nil {
			o.calendar = c
		}
	}
}

// WithSnapshotStore lets the daily-picks engine cache candidate snapshots.
func WithSnapshotStore(s store.SnapshotStore) Option {
	return func(o *options) { o.snapshots = s }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the clock used to validate date ranges.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// emitter sends events until the run context is cancelled.
type emitter struct {
	ctx context.Context
	out chan<- Event
}

func (e emitter) send(ev Event) bool {
	if e.ctx.Err() != nil {
		return false
	}
	select {
	case e.out <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}
