package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/candlecache"
	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/logging"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/strategy"
	"github.com/abhishekslab/growwbot/internal/trading"
	"github.com/abhishekslab/growwbot/pkg/utils"
)

// RunConfig describes a single-symbol backtest.
type RunConfig struct {
	AlgoID         string  `json:"algo_id"`
	Symbol         string  `json:"groww_symbol"`
	Exchange       string  `json:"exchange"`
	Segment        string  `json:"segment"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Interval       string  `json:"candle_interval"`
	InitialCapital float64 `json:"initial_capital"`
	RiskPercent    float64 `json:"risk_percent"`
	MaxPositions   int     `json:"max_positions"`
}

// WithDefaults fills unset fields.
func (c RunConfig) WithDefaults() RunConfig {
	if c.Exchange == "" {
		c.Exchange = string(models.NSE)
	}
	if c.Segment == "" {
		c.Segment = string(models.SegmentCash)
	}
	if c.Interval == "" {
		c.Interval = "5minute"
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = 100000
	}
	if c.RiskPercent == 0 {
		c.RiskPercent = 1.0
	}
	if c.MaxPositions == 0 {
		c.MaxPositions = 1
	}
	return c
}

const noCandlesMessage = "No candle data for the given range. Check that the symbol is correct " +
	"(e.g. NSE-RELIANCE for CASH, not just RELIANCE), that the date range contains trading days, " +
	"and that the range is not before 2020."

// Engine walks one symbol's candles forward, holding at most one position.
type Engine struct {
	candles  CandleSource
	registry *strategy.Registry
	opts     options
}

// NewEngine creates a single-symbol engine.
func NewEngine(candles CandleSource, registry *strategy.Registry, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{candles: candles, registry: registry, opts: o}
}

// Run starts the backtest and returns its event stream. The channel is closed
// after the terminal event, or without one when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, cfg RunConfig) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		e.run(ctx, cfg.WithDefaults(), emitter{ctx: ctx, out: out})
	}()
	return out
}

func (e *Engine) run(ctx context.Context, cfg RunConfig, em emitter) {
	logger := logging.WithOperation(logging.WithSymbol(e.opts.logger, cfg.Symbol), "backtest")

	if msg := validateRange(cfg.StartDate, cfg.EndDate, e.opts.now()); msg != "" {
		em.send(errorEvent("%s", msg))
		return
	}
	eval, err := e.registry.New(cfg.AlgoID)
	if err != nil {
		em.send(errorEvent("Strategy not found: %s", cfg.AlgoID))
		return
	}

	candles, err := e.candles.GetCandles(ctx, candlecache.Request{
		Symbol:    cfg.Symbol,
		Exchange:  cfg.Exchange,
		Segment:   cfg.Segment,
		Interval:  cfg.Interval,
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Msg("candle fetch failed")
		em.send(errorEvent("%v", err))
		return
	}
	if len(candles) == 0 {
		em.send(errorEvent("%s", noCandlesMessage))
		return
	}

	logger.Info().
		Str("algo_id", cfg.AlgoID).
		Int("bars", len(candles)).
		Str("start", cfg.StartDate).
		Str("end", cfg.EndDate).
		Msg("backtest started")

	total := len(candles)
	step := total / 20
	if step < 1 {
		step = 1
	}

	var (
		open     *models.Position
		trades   = make([]models.ClosedTrade, 0)
		curve    = make([]models.EquityPoint, 0, total)
		realized float64
	)

	eval.SetRuntimeParams(cfg.InitialCapital, cfg.RiskPercent)

	for i, bar := range candles {
		if ctx.Err() != nil {
			return
		}

		if open != nil {
			if exit, ok := trading.CheckBar(*open, bar, e.opts.policy); ok {
				closed := closePosition(*open, exit, bar.Time, "")
				realized += closed.PnL
				trades = append(trades, closed)
				open = nil
				if !em.send(tradeEvent(TradeClosed{Trade: closed})) {
					return
				}
			}
		}

		curve = append(curve, models.EquityPoint{Time: bar.Time, Equity: cfg.InitialCapital + realized})

		if open == nil && i >= WarmupBars && cfg.MaxPositions >= 1 {
			eval.SetRuntimeParams(cfg.InitialCapital+realized, cfg.RiskPercent)
			info := models.Candidate{Symbol: cfg.Symbol}.WithBar(bar)
			if sig := evaluate(eval, cfg.Symbol, candles[:i+1], bar.Close, info, logger); sig.IsBuy() {
				pos := openPosition(cfg.Symbol, sig, bar.Time)
				open = &pos
			}
		}

		if i%step == 0 || i == total-1 {
			p := Progress{
				Percent:       fees.Round(float64(i+1)/float64(total)*100, 1),
				CurrentDate:   bar.Timestamp().Format("2006-01-02 15:04"),
				BarsProcessed: i + 1,
				TotalBars:     total,
			}
			if !em.send(progressEvent(p)) {
				return
			}
		}
	}

	result := Complete{
		Metrics:     ComputeMetrics(cfg.InitialCapital, trades, curve),
		Trades:      trades,
		EquityCurve: curve,
	}
	if a, ok := eval.(strategy.SignalAnalyzer); ok {
		result.SignalAnalysis = a.SignalAnalysis()
	}

	logger.Info().
		Int("trades", len(trades)).
		Float64("net_pnl", result.Metrics.NetPnL).
		Bool("position_open", open != nil).
		Msg("backtest finished")

	em.send(completeEvent(result))
}

// validateRange returns a user-facing message when the range is unusable.
func validateRange(start, end string, now time.Time) string {
	s, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return fmt.Sprintf("Invalid start date %q: expected YYYY-MM-DD.", start)
	}
	e, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return fmt.Sprintf("Invalid end date %q: expected YYYY-MM-DD.", end)
	}
	if s.After(e) {
		return "Start date must be before or equal to end date."
	}
	today := now.In(utils.IndiaLocation).Format(models.DateLayout)
	if end > today {
		return fmt.Sprintf("End date cannot be in the future. Use a date range up to today (%s).", today)
	}
	return ""
}

// evaluate asks the evaluator for a signal. Errors, panics and buys without
// a positive quantity count as no signal.
func evaluate(eval strategy.Evaluator, symbol string, history []models.Candle, ltp float64, info models.Candidate, logger zerolog.Logger) (sig *models.AlgoSignal) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug().Interface("panic", r).Msg("strategy evaluation panicked")
			sig = nil
		}
	}()
	s, err := eval.Evaluate(symbol, history, ltp, info)
	if err != nil {
		var se *apperrors.StrategyError
		if !errors.As(err, &se) {
			err = apperrors.NewStrategyError(eval.ID(), symbol, err)
		}
		logger.Debug().Err(err).Msg("strategy evaluation failed")
		return nil
	}
	if s.IsBuy() && s.Quantity <= 0 {
		logger.Debug().Int("quantity", s.Quantity).Str("reason", s.Reason).Msg("buy signal without quantity ignored")
		return nil
	}
	return s
}

func openPosition(symbol string, sig *models.AlgoSignal, at int64) models.Position {
	return models.Position{
		Symbol:     symbol,
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		Target:     sig.Target,
		Quantity:   sig.Quantity,
		EntryTime:  at,
		TradeType:  models.TradeTypeIntraday,
		Reason:     sig.Reason,
	}
}

func closePosition(pos models.Position, exit trading.Exit, at int64, date string) models.ClosedTrade {
	pnl, total := fees.ComputeExitPnL(pos.EntryPrice, exit.Price, pos.Quantity, pos.TradeType)
	return models.ClosedTrade{
		Symbol:      pos.Symbol,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exit.Price,
		Quantity:    pos.Quantity,
		EntryTime:   pos.EntryTime,
		ExitTime:    at,
		PnL:         pnl,
		Fees:        total,
		ExitTrigger: exit.Trigger,
		Reason:      pos.Reason,
		Date:        date,
		TradeType:   pos.TradeType,
	}
}
