// Package monitor watches open live and paper trades and closes them when
// the last traded price crosses their stop or target.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/broker"
	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/logging"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/store"
	"github.com/abhishekslab/growwbot/internal/trading"
	"github.com/abhishekslab/growwbot/pkg/utils"
)

// Broker is the subset of broker capabilities the monitor needs.
type Broker interface {
	broker.QuoteSource
	broker.OrderPlacer
	broker.OrderStatusSource
}

// Notifier is told about exits and failed exit orders.
type Notifier interface {
	TradeClosed(ctx context.Context, trade models.Trade) error
	Error(ctx context.Context, err error, errContext string) error
}

// Config tunes the polling loop.
type Config struct {
	Interval    time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	BatchSize   int
	RetryDelay  time.Duration
	// PaperMode simulates every exit, including trades recorded as live.
	PaperMode bool
	// MarketHoursOnly makes Run idle until the next session open while the
	// cash market is closed.
	MarketHoursOnly bool
}

// DefaultConfig returns a 5s poll that backs off to at most 60s.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  60 * time.Second,
		BatchSize:   50,
		RetryDelay:  2 * time.Second,
	}
}

// ErrNoQuotes is returned by Pass when open trades exist but no price could be fetched.
var ErrNoQuotes = errors.New("no quotes available for open trades")

// confirmed broker states that stop further order-status polling.
var confirmedStatuses = map[string]bool{
	"COMPLETE": true,
	"EXECUTED": true,
	"TRADED":   true,
	"FILLED":   true,
}

// Monitor is a cancellable periodic task over the trade store.
type Monitor struct {
	trades   store.TradeStore
	broker   Broker
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
	notifier Notifier

	failures int
}

// New creates a monitor.
func New(trades store.TradeStore, b Broker, cfg Config, logger zerolog.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &Monitor{
		trades: trades,
		broker: b,
		cfg:    cfg,
		logger: logger.With().Str("component", "position_monitor").Logger(),
		now:    time.Now,
	}
}

// SetNotifier installs n. A nil n disables notifications.
func (m *Monitor) SetNotifier(n Notifier) {
	m.notifier = n
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.cfg.Interval).Msg("position monitor started")
	defer m.logger.Info().Msg("position monitor stopped")

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		delay, idle := m.idleFor(m.now())
		if !idle {
			err := m.Pass(ctx)
			if ctx.Err() != nil {
				return nil
			}
			delay = m.nextDelay(err)
		}
		ticker.Reset(delay)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// idleFor reports how long to wait for the next session when the market is
// closed and MarketHoursOnly is set.
func (m *Monitor) idleFor(now time.Time) (time.Duration, bool) {
	if !m.cfg.MarketHoursOnly || utils.IsMarketOpenAt(now) {
		return 0, false
	}
	wait := utils.GetNextMarketOpen(now).Sub(now)
	m.logger.Info().
		Str("market", string(utils.MarketStatusAt(now))).
		Dur("resume_in", wait).
		Msg("market closed, monitor idle")
	return wait, true
}

// nextDelay doubles the wait on consecutive failures and resets on success.
func (m *Monitor) nextDelay(err error) time.Duration {
	if err == nil {
		if m.failures > 0 {
			m.logger.Info().Int("failures", m.failures).Msg("position monitor recovered")
		}
		m.failures = 0
		return m.cfg.Interval
	}

	m.failures++
	delay := utils.CalculateBackoff(m.failures, m.cfg.BaseBackoff, m.cfg.MaxBackoff, 2)
	m.logger.Warn().Err(err).Int("failures", m.failures).Dur("backoff", delay).Msg("position monitor backing off")
	return delay
}

// Pass runs one monitoring cycle over every OPEN trade.
func (m *Monitor) Pass(ctx context.Context) error {
	open, err := m.trades.ListTrades(ctx, store.TradeFilter{Status: []models.TradeStatus{models.TradeOpen}})
	if err != nil {
		return fmt.Errorf("failed to list open trades: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	symbols := uniqueSymbols(open)
	ltp := m.fetchLTP(ctx, symbols)

	for _, t := range open {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if m.checkOrderRejected(ctx, t) {
			continue
		}
		price, ok := ltp[t.Symbol]
		if !ok || price <= 0 {
			continue
		}
		if err := m.checkExit(ctx, t, price); err != nil {
			m.logger.Error().Err(err).Int64("trade_id", t.ID).Str("symbol", t.Symbol).Msg("exit handling failed")
		}
	}

	if len(ltp) == 0 {
		return ErrNoQuotes
	}
	return nil
}

// fetchLTP requests prices in batches, two attempts per batch. Failed batches
// are skipped.
func (m *Monitor) fetchLTP(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	retry := utils.RetryPolicy{
		Attempts: 2,
		Delay:    m.cfg.RetryDelay,
		RetryIf:  apperrors.IsRetryable,
	}

	for start := 0; start < len(symbols); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		began := time.Now()
		prices, err := utils.RetryWithResult(ctx, retry, func() (map[string]float64, error) {
			return m.broker.LTP(ctx, batch)
		})
		logging.BrokerCall(m.logger, "ltp", strings.Join(batch, ","), time.Since(began), err)
		if err != nil {
			m.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("LTP batch fetch failed")
			continue
		}
		for sym, p := range prices {
			if p > 0 {
				out[sym] = p
			}
		}
	}
	return out
}

// checkOrderRejected marks a live trade FAILED when its entry order was
// rejected or cancelled. It reports whether the trade was failed.
func (m *Monitor) checkOrderRejected(ctx context.Context, t models.Trade) bool {
	if m.simulated(t) || t.OrderID == "" {
		return false
	}
	if t.OrderStatus != "" && t.OrderStatus != models.OrderPlaced {
		return false
	}

	status, err := m.broker.OrderStatus(ctx, t.OrderID)
	if err != nil {
		m.logger.Debug().Err(err).Int64("trade_id", t.ID).Msg("could not verify order status")
		return false
	}
	status = strings.ToUpper(status)

	switch {
	case broker.IsTerminalFailure(status):
		failed := models.TradeFailed
		rejected := models.OrderRejected
		notes := fmt.Sprintf("Order %s", strings.ToLower(status))
		if err := m.trades.UpdateTrade(ctx, t.ID, models.TradeUpdate{
			Status:      &failed,
			OrderStatus: &rejected,
			Notes:       &notes,
		}); err != nil {
			m.logger.Error().Err(err).Int64("trade_id", t.ID).Msg("failed to mark trade failed")
			return false
		}
		m.logger.Warn().
			Int64("trade_id", t.ID).
			Str("symbol", t.Symbol).
			Str("order_id", t.OrderID).
			Str("order_status", status).
			Msg("entry order did not fill, trade marked failed")
		return true
	case confirmedStatuses[status]:
		filled := models.OrderFilled
		if err := m.trades.UpdateTrade(ctx, t.ID, models.TradeUpdate{OrderStatus: &filled}); err != nil {
			m.logger.Debug().Err(err).Int64("trade_id", t.ID).Msg("failed to record order fill")
		}
	}
	return false
}

// checkExit closes the trade when ltp crosses a level. A live exit order that
// fails to place leaves the trade OPEN for the next cycle.
func (m *Monitor) checkExit(ctx context.Context, t models.Trade, ltp float64) error {
	exit, ok := trading.CheckTick(t.Position(), ltp)
	if !ok {
		return nil
	}

	logger := logging.WithSymbol(m.logger, t.Symbol).With().Int64("trade_id", t.ID).Logger()
	logger.Info().
		Str("trigger", string(exit.Trigger)).
		Float64("ltp", ltp).
		Float64("entry", t.EntryPrice).
		Float64("stop_loss", t.StopLoss).
		Float64("target", t.Target).
		Msg("exit triggered")

	update := models.TradeUpdate{}
	if m.simulated(t) {
		simulated := models.OrderSimulated
		update.OrderStatus = &simulated
	} else {
		res, err := m.broker.PlaceOrder(ctx, models.ExitOrder(t))
		if err != nil {
			err = fmt.Errorf("exit order for trade %d: %w", t.ID, err)
			m.notifyError(ctx, err, t.Symbol+" "+string(exit.Trigger)+" exit")
			return err
		}
		orderID := ""
		if res != nil {
			orderID = res.OrderID
		}
		logging.Order(logger, string(models.OrderSideSell), t.Symbol, t.Quantity, ltp, orderID)
		if orderID != "" {
			notes := appendNote(t.Notes, "exit order "+orderID)
			update.Notes = &notes
		}
	}

	net, total := fees.ComputeExitPnL(t.EntryPrice, exit.Price, t.Quantity, t.TradeType)
	status := models.TradeLost
	if net > 0 {
		status = models.TradeWon
	}
	exitPrice := fees.Round2(exit.Price)
	exitDate := m.now().UTC()
	trigger := exit.Trigger

	update.Status = &status
	update.ExitPrice = &exitPrice
	update.ActualPnL = &net
	update.ActualFees = &total
	update.ExitDate = &exitDate
	update.ExitTrigger = &trigger

	if err := m.trades.UpdateTrade(ctx, t.ID, update); err != nil {
		return err
	}
	logging.Exit(logger, t.Symbol, string(exit.Trigger), exitPrice, net)

	if m.notifier != nil {
		closed := t
		closed.Status = status
		closed.ExitPrice = &exitPrice
		closed.ActualPnL = &net
		closed.ActualFees = &total
		closed.ExitDate = &exitDate
		closed.ExitTrigger = trigger
		if err := m.notifier.TradeClosed(ctx, closed); err != nil {
			logger.Warn().Err(err).Msg("exit notification failed")
		}
	}
	return nil
}

func (m *Monitor) notifyError(ctx context.Context, err error, errContext string) {
	if m.notifier == nil {
		return
	}
	if nerr := m.notifier.Error(ctx, err, errContext); nerr != nil {
		m.logger.Warn().Err(nerr).Msg("error notification failed")
	}
}

func (m *Monitor) simulated(t models.Trade) bool {
	return t.IsPaper || m.cfg.PaperMode
}

func uniqueSymbols(trades []models.Trade) []string {
	seen := make(map[string]bool, len(trades))
	var out []string
	for _, t := range trades {
		if !seen[t.Symbol] {
			seen[t.Symbol] = true
			out = append(out, t.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
