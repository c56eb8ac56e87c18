package backtest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/store"
)

// Recorder persists completed runs to the run history.
type Recorder struct {
	runs   store.RunStore
	logger zerolog.Logger
}

// NewRecorder creates a recorder writing to runs.
func NewRecorder(runs store.RunStore, logger zerolog.Logger) *Recorder {
	return &Recorder{runs: runs, logger: logger}
}

// SaveRun stores a finished single-symbol run and returns its id.
func (r *Recorder) SaveRun(ctx context.Context, cfg RunConfig, result Complete) (int64, error) {
	cfg = cfg.WithDefaults()
	return r.save(ctx, cfg, &models.BacktestRun{
		AlgoID:    cfg.AlgoID,
		Symbol:    cfg.Symbol,
		Exchange:  cfg.Exchange,
		Segment:   cfg.Segment,
		Interval:  cfg.Interval,
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
	}, result)
}

// SaveDailyPicks stores a finished daily-picks run and returns its id.
func (r *Recorder) SaveDailyPicks(ctx context.Context, cfg DailyPicksConfig, result Complete) (int64, error) {
	cfg = cfg.WithDefaults()
	return r.save(ctx, cfg, &models.BacktestRun{
		AlgoID:    cfg.AlgoID,
		Symbol:    DailyPicksSymbol,
		Exchange:  string(models.NSE),
		Segment:   string(models.SegmentCash),
		Interval:  cfg.Interval,
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
	}, result)
}

func (r *Recorder) save(ctx context.Context, cfg any, run *models.BacktestRun, result Complete) (int64, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode run config: %w", err)
	}
	metrics := result.Metrics
	run.Config = raw
	run.Metrics = &metrics
	run.Trades = result.Trades
	run.EquityCurve = result.EquityCurve

	id, err := r.runs.SaveRun(ctx, run)
	if err != nil {
		return 0, err
	}
	r.logger.Info().Int64("run_id", id).Str("algo_id", run.AlgoID).Str("symbol", run.Symbol).Msg("backtest run saved")
	return id, nil
}

// Collect drains a stream, passing every event to fn, and returns the
// terminal event. ok is false when the stream ended without one.
func Collect(events <-chan Event, fn func(Event)) (last Event, ok bool) {
	for ev := range events {
		if fn != nil {
			fn(ev)
		}
		if ev.Terminal() {
			last, ok = ev, true
		}
	}
	return last, ok
}
