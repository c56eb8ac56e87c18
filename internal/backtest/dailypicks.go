package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/abhishekslab/growwbot/internal/candlecache"
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/logging"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/picks"
	"github.com/abhishekslab/growwbot/internal/strategy"
	"github.com/abhishekslab/growwbot/internal/trading"
)

// DailyPicksSymbol is the symbol recorded for daily-picks runs.
const DailyPicksSymbol = "DAILY_PICKS"

// DailyPicksConfig describes a multi-day portfolio backtest over screened picks.
type DailyPicksConfig struct {
	AlgoID                  string  `json:"algo_id"`
	StartDate               string  `json:"start_date"`
	EndDate                 string  `json:"end_date"`
	Interval                string  `json:"candle_interval"`
	InitialCapital          float64 `json:"initial_capital"`
	MaxPositionsPerDay      int     `json:"max_positions_per_day"`
	RiskPercent             float64 `json:"risk_percent"`
	MaxTradeDurationMinutes int     `json:"max_trade_duration_minutes"`
	UseCachedSnapshots      *bool   `json:"use_cached_snapshots"`
	Workers                 int     `json:"-"`
}

// WithDefaults fills unset fields.
func (c DailyPicksConfig) WithDefaults() DailyPicksConfig {
	if c.Interval == "" {
		c.Interval = "5minute"
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = 100000
	}
	if c.MaxPositionsPerDay == 0 {
		c.MaxPositionsPerDay = 3
	}
	if c.RiskPercent == 0 {
		c.RiskPercent = 1.0
	}
	if c.MaxTradeDurationMinutes == 0 {
		c.MaxTradeDurationMinutes = 15
	}
	if c.UseCachedSnapshots == nil {
		use := true
		c.UseCachedSnapshots = &use
	}
	if c.Workers < 1 {
		c.Workers = 3
	}
	return c
}

// DailyPicksEngine replays the daily-picks pipeline day by day, compounding
// equity across days. Positions never survive the session.
type DailyPicksEngine struct {
	candles  CandleSource
	provider picks.Provider
	registry *strategy.Registry
	opts     options
}

// NewDailyPicksEngine creates a daily-picks engine drawing candidates from provider.
func NewDailyPicksEngine(candles CandleSource, provider picks.Provider, registry *strategy.Registry, opts ...Option) *DailyPicksEngine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &DailyPicksEngine{candles: candles, provider: provider, registry: registry, opts: o}
}

// Run starts the backtest and returns its event stream. The channel is closed
// after the terminal event, or without one when ctx is cancelled.
func (e *DailyPicksEngine) Run(ctx context.Context, cfg DailyPicksConfig) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		e.run(ctx, cfg.WithDefaults(), emitter{ctx: ctx, out: out})
	}()
	return out
}

func (e *DailyPicksEngine) run(ctx context.Context, cfg DailyPicksConfig, em emitter) {
	logger := logging.WithOperation(e.opts.logger, "daily_picks_backtest")

	if !e.registry.Has(cfg.AlgoID) {
		em.send(errorEvent("Strategy not found: %s", cfg.AlgoID))
		return
	}
	days, err := e.opts.calendar.TradingDays(cfg.StartDate, cfg.EndDate)
	if err != nil || len(days) == 0 {
		em.send(errorEvent("No trading days in range"))
		return
	}

	provider := e.provider
	if e.opts.snapshots != nil {
		provider = picks.NewCachedProvider(provider, e.opts.snapshots, *cfg.UseCachedSnapshots, e.opts.logger)
	}

	logger.Info().
		Str("algo_id", cfg.AlgoID).
		Str("start", cfg.StartDate).
		Str("end", cfg.EndDate).
		Int("days", len(days)).
		Msg("daily picks backtest started")

	equity := cfg.InitialCapital
	allTrades := make([]models.ClosedTrade, 0)
	curve := []models.EquityPoint{{Date: days[0], Equity: cfg.InitialCapital}}

	for idx, date := range days {
		if ctx.Err() != nil {
			return
		}
		dayLogger := logger.With().Str("date", date).Logger()

		snap, err := provider.Candidates(ctx, date)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			dayLogger.Warn().Err(err).Msg("daily picks unavailable")
		}
		if snap == nil || len(snap.Candidates) == 0 {
			if !em.send(dayStartEvent(DayStart{Date: date, Day: idx + 1, TotalDays: len(days)})) {
				return
			}
			continue
		}

		hc := snap.Meta.HighConvictionCount
		startEquity := fees.Round2(equity)
		if !em.send(dayStartEvent(DayStart{
			Date:                date,
			CandidatesCount:     len(snap.Candidates),
			HighConvictionCount: &hc,
			Day:                 idx + 1,
			TotalDays:           len(days),
			CurrentEquity:       &startEquity,
		})) {
			return
		}

		selected := picks.Select(snap.Candidates, cfg.MaxPositionsPerDay*3)
		results, err := e.simulateDay(ctx, cfg, date, selected, equity, dayLogger)
		if err != nil {
			return
		}

		var dailyPnL, dailyFees float64
		var count int
		for i, trades := range results {
			for _, t := range trades {
				dailyPnL += t.PnL
				dailyFees += t.Fees
				count++
				allTrades = append(allTrades, t)
				if !em.send(tradeEvent(TradeClosed{Date: date, Trade: t, Symbol: selected[i].Symbol})) {
					return
				}
			}
		}
		equity += dailyPnL

		pnl, fee := fees.Round2(dailyPnL), fees.Round2(dailyFees)
		curve = append(curve, models.EquityPoint{
			Date:      date,
			Equity:    fees.Round2(equity),
			DailyPnL:  &pnl,
			DailyFees: &fee,
		})

		dayLogger.Info().Int("trades", count).Float64("daily_pnl", pnl).Msg("day complete")

		if !em.send(dayCompleteEvent(DayComplete{
			Date:          date,
			DailyPnL:      pnl,
			DailyFees:     fee,
			TradesCount:   count,
			CurrentEquity: fees.Round2(equity),
			Day:           idx + 1,
			TotalDays:     len(days),
		})) {
			return
		}
	}

	metrics := ComputeMetrics(cfg.InitialCapital, allTrades, curve)
	metrics.StartDate = cfg.StartDate
	metrics.EndDate = cfg.EndDate
	metrics.TotalDays = len(days)
	metrics.TradingDays = days

	logger.Info().
		Int("trades", len(allTrades)).
		Float64("final_equity", metrics.FinalEquity).
		Msg("daily picks backtest finished")

	em.send(completeEvent(Complete{
		Metrics:        metrics,
		Trades:         allTrades,
		EquityCurve:    curve,
		AlgoID:         cfg.AlgoID,
		CandleInterval: cfg.Interval,
	}))
}

// simulateDay runs every selected candidate on its own evaluator and returns
// the trades per candidate, in candidate order. Only cancellation is an error.
func (e *DailyPicksEngine) simulateDay(ctx context.Context, cfg DailyPicksConfig, date string, selected []models.Candidate, equity float64, logger zerolog.Logger) ([][]models.ClosedTrade, error) {
	results := make([][]models.ClosedTrade, len(selected))

	p := pool.New().WithMaxGoroutines(cfg.Workers).WithContext(ctx)
	for i, cand := range selected {
		i, cand := i, cand
		p.Go(func(ctx context.Context) error {
			trades, err := e.simulateSymbol(ctx, cfg, date, cand, equity)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				logger.Warn().Err(err).Str("symbol", cand.Symbol).Msg("symbol simulation failed")
				return nil
			}
			results[i] = trades
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// simulateSymbol walks one candidate's session and force-closes any position
// at the last bar.
func (e *DailyPicksEngine) simulateSymbol(ctx context.Context, cfg DailyPicksConfig, date string, cand models.Candidate, equity float64) (trades []models.ClosedTrade, err error) {
	defer func() {
		if r := recover(); r != nil {
			trades, err = nil, fmt.Errorf("simulation panicked: %v", r)
		}
	}()

	eval, err := e.registry.New(cfg.AlgoID)
	if err != nil {
		return nil, err
	}
	candles, err := e.candles.GetCandles(ctx, candlecache.Request{
		Symbol:    cand.Symbol,
		Exchange:  string(models.NSE),
		Segment:   string(models.SegmentCash),
		Interval:  cfg.Interval,
		StartDate: date,
		EndDate:   date,
	})
	if err != nil {
		return nil, err
	}
	if len(candles) < WarmupBars {
		return nil, nil
	}

	logger := logging.WithSymbol(e.opts.logger, cand.Symbol)
	eval.SetRuntimeParams(equity, cfg.RiskPercent)

	var open *models.Position
	for i, bar := range candles {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if open != nil {
			exit, ok := trading.CheckBar(*open, bar, e.opts.policy)
			if !ok && trading.TimeExpired(open.EntryTime, bar.Time, cfg.MaxTradeDurationMinutes) {
				exit, ok = trading.Exit{Trigger: models.ExitTimeExit, Price: bar.Close}, true
			}
			if ok {
				trades = append(trades, closePosition(*open, exit, bar.Time, date))
				open = nil
			}
		}

		if open == nil && i >= WarmupBars {
			if sig := evaluate(eval, cand.Symbol, candles[:i+1], bar.Close, cand.WithBar(bar), logger); sig.IsBuy() {
				pos := openPosition(cand.Symbol, sig, bar.Time)
				open = &pos
			}
		}
	}

	if open != nil {
		last := candles[len(candles)-1]
		trades = append(trades, closePosition(*open, trading.Exit{Trigger: models.ExitEOD, Price: last.Close}, last.Time, date))
	}
	return trades, nil
}
