package backtest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/strategy"
	"github.com/abhishekslab/growwbot/internal/trading"
)

func baseConfig() RunConfig {
	return RunConfig{
		AlgoID:    testAlgo,
		Symbol:    "NSE-TEST",
		StartDate: "2025-01-06",
		EndDate:   "2025-01-10",
	}
}

func never(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal {
	return nil
}

func TestEngine_Validation(t *testing.T) {
	candles := session("2025-01-06", 40, flat)
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		source CandleSource
		want   string
	}{
		{"start after end", func(c *RunConfig) { c.StartDate, c.EndDate = "2025-01-10", "2025-01-06" }, fixedSource{candles: candles}, "Start date must be before or equal to end date."},
		{"future end", func(c *RunConfig) { c.EndDate = "2025-06-03" }, fixedSource{candles: candles}, "End date cannot be in the future. Use a date range up to today (2025-06-02)."},
		{"bad date", func(c *RunConfig) { c.StartDate = "06-01-2025" }, fixedSource{candles: candles}, "Invalid start date"},
		{"unknown strategy", func(c *RunConfig) { c.AlgoID = "nope" }, fixedSource{candles: candles}, "Strategy not found: nope"},
		{"no candles", func(c *RunConfig) {}, fixedSource{}, "No candle data for the given range."},
		{"fetch error", func(c *RunConfig) {}, fixedSource{err: errors.New("gateway timeout")}, "gateway timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			engine := NewEngine(tt.source, registryFor(never), WithClock(fixedNow))

			events := collect(engine.Run(context.Background(), cfg))
			if len(events) != 1 {
				t.Fatalf("got %d events, want a single error event", len(events))
			}
			ev := events[0]
			if ev.Type != EventError {
				t.Fatalf("event type = %s, want error", ev.Type)
			}
			if msg := ev.Data.(Failure).Error; !strings.HasPrefix(msg, tt.want) {
				t.Errorf("error = %q, want prefix %q", msg, tt.want)
			}
		})
	}
}

func TestEngine_TieResolvedByProximityToOpen(t *testing.T) {
	candles := session("2025-01-06", 35, flat)
	candles[31] = models.Candle{Time: candles[31].Time, Open: 100, High: 106, Low: 94, Close: 100, Volume: 1000}

	decide := func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal {
		if len(history) == 31 {
			return buy(100, 95, 105, 10)
		}
		return nil
	}
	engine := NewEngine(fixedSource{candles: candles}, registryFor(decide), WithClock(fixedNow))
	events := collect(engine.Run(context.Background(), baseConfig()))

	trades := ofType(events, EventTrade)
	if len(trades) != 1 {
		t.Fatalf("got %d trade events, want 1", len(trades))
	}
	trade := trades[0].Data.(TradeClosed).Trade
	if trade.ExitTrigger != models.ExitTarget || trade.ExitPrice != 105 {
		t.Errorf("exit = %s @ %v, want TARGET @ 105", trade.ExitTrigger, trade.ExitPrice)
	}
	wantPnL, wantFees := fees.ComputeExitPnL(100, 105, 10, models.TradeTypeIntraday)
	if trade.PnL != wantPnL || trade.Fees != wantFees {
		t.Errorf("pnl/fees = %v/%v, want %v/%v", trade.PnL, trade.Fees, wantPnL, wantFees)
	}
	if trade.EntryTime != candles[30].Time || trade.ExitTime != candles[31].Time {
		t.Errorf("entry/exit times = %d/%d", trade.EntryTime, trade.ExitTime)
	}

	conservative := NewEngine(fixedSource{candles: candles}, registryFor(decide), WithClock(fixedNow), WithTiePolicy(trading.TieConservative))
	events = collect(conservative.Run(context.Background(), baseConfig()))
	trade = ofType(events, EventTrade)[0].Data.(TradeClosed).Trade
	if trade.ExitTrigger != models.ExitSL || trade.ExitPrice != 95 {
		t.Errorf("conservative exit = %s @ %v, want SL @ 95", trade.ExitTrigger, trade.ExitPrice)
	}
}

func TestEngine_ProgressCadence(t *testing.T) {
	candles := session("2025-01-06", 100, flat)
	engine := NewEngine(fixedSource{candles: candles}, registryFor(never), WithClock(fixedNow))
	events := collect(engine.Run(context.Background(), baseConfig()))

	progress := ofType(events, EventProgress)
	if len(progress) != 21 {
		t.Fatalf("got %d progress events, want 21", len(progress))
	}
	first := progress[0].Data.(Progress)
	if first.BarsProcessed != 1 || first.CurrentDate != "2025-01-06 03:45" || first.Percent != 1 {
		t.Errorf("first progress = %+v", first)
	}
	last := progress[len(progress)-1].Data.(Progress)
	if last.Percent != 100 || last.BarsProcessed != 100 || last.TotalBars != 100 {
		t.Errorf("last progress = %+v", last)
	}
	if terminal(events).Type != EventComplete {
		t.Errorf("stream should end with complete, got %s", terminal(events).Type)
	}
}

func TestEngine_OpenPositionAtEndIsNotClosed(t *testing.T) {
	candles := session("2025-01-06", 40, flat)
	decide := func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal {
		if len(history) == len(candles) {
			return buy(100, 90, 110, 5)
		}
		return nil
	}
	engine := NewEngine(fixedSource{candles: candles}, registryFor(decide), WithClock(fixedNow))
	events := collect(engine.Run(context.Background(), baseConfig()))

	done := terminal(events)
	if done.Type != EventComplete {
		t.Fatalf("terminal = %s", done.Type)
	}
	result := done.Data.(Complete)
	if len(result.Trades) != 0 || result.Metrics.TradeCount != 0 {
		t.Errorf("open position must not be closed: %+v", result.Trades)
	}
	if len(result.EquityCurve) != len(candles) || result.Metrics.FinalEquity != 100000 {
		t.Errorf("curve len %d, final %v", len(result.EquityCurve), result.Metrics.FinalEquity)
	}
}

func TestEngine_EvaluatorPanicIsNoSignal(t *testing.T) {
	candles := session("2025-01-06", 40, flat)
	decide := func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal {
		panic("boom")
	}
	engine := NewEngine(fixedSource{candles: candles}, registryFor(decide), WithClock(fixedNow))
	events := collect(engine.Run(context.Background(), baseConfig()))
	if terminal(events).Type != EventComplete {
		t.Fatalf("terminal = %s, want complete", terminal(events).Type)
	}
}

func TestEngine_BuyWithoutQuantityIsNoSignal(t *testing.T) {
	candles := session("2025-01-06", 40, rising)
	decide := func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal {
		if len(history) == 31 {
			return buy(100, 99, 100.2, 0)
		}
		if len(history) == 32 {
			return buy(100, 99, 100.2, -5)
		}
		return nil
	}
	engine := NewEngine(fixedSource{candles: candles}, registryFor(decide), WithClock(fixedNow))
	events := collect(engine.Run(context.Background(), baseConfig()))

	done := terminal(events)
	if done.Type != EventComplete {
		t.Fatalf("terminal = %s, want complete", done.Type)
	}
	if n := len(ofType(events, EventTrade)); n != 0 {
		t.Errorf("got %d trades from buys without quantity", n)
	}
	if m := done.Data.(Complete).Metrics; m.TradeCount != 0 || m.Losses != 0 {
		t.Errorf("metrics = %+v, want no trades", m)
	}
}

func TestEngine_SignalAnalysisFromBuiltins(t *testing.T) {
	candles := session("2025-01-06", 40, flat)
	engine := NewEngine(fixedSource{candles: candles}, strategy.DefaultRegistry(), WithClock(fixedNow))
	cfg := baseConfig()
	cfg.AlgoID = strategy.MomentumScalpID

	done := terminal(collect(engine.Run(context.Background(), cfg)))
	if done.Type != EventComplete {
		t.Fatalf("terminal = %s", done.Type)
	}
	total := 0
	for _, n := range done.Data.(Complete).SignalAnalysis {
		total += n
	}
	if total != 10 {
		t.Errorf("rejections = %d, want one per evaluated bar (10)", total)
	}
}

func TestEngine_CancellationEndsWithoutTerminalEvent(t *testing.T) {
	candles := session("2025-01-06", 3000, flat)
	engine := NewEngine(fixedSource{candles: candles}, registryFor(never), WithClock(fixedNow))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []Event
	timeout := time.After(5 * time.Second)
	ch := engine.Run(ctx, baseConfig())
loop:
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				break loop
			}
			seen = append(seen, ev)
			if ev.Type == EventProgress {
				cancel()
			}
		case <-timeout:
			t.Fatal("stream did not close after cancellation")
		}
	}
	for _, ev := range seen {
		if ev.Terminal() {
			t.Fatalf("unexpected terminal event %s after cancellation", ev.Type)
		}
	}
}

// Property: the evaluator only ever sees bars up to and including the current one.
func TestProperty_NoLookAhead(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("history is a growing prefix ending at the current bar", prop.ForAll(
		func(steps []float64) bool {
			price := 500.0
			candles := session("2025-01-06", len(steps), func(i int) float64 {
				price += steps[i]
				return price
			})

			var calls []int
			ok := true
			decide := func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal {
				k := len(history) - 1
				calls = append(calls, k)
				if history[k].Time != candles[k].Time || info.Close != candles[k].Close {
					ok = false
				}
				return nil
			}
			engine := NewEngine(fixedSource{candles: candles}, registryFor(decide), WithClock(fixedNow))
			collect(engine.Run(context.Background(), baseConfig()))

			if len(calls) != len(candles)-WarmupBars {
				return false
			}
			for i, k := range calls {
				if k != WarmupBars+i {
					return false
				}
			}
			return ok
		},
		gen.SliceOfN(120, gen.Float64Range(-2, 2)),
	))

	properties.TestingRun(t)
}

// Property: each equity point equals initial capital plus the PnL of every
// trade closed at or before that bar.
func TestProperty_EquityConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("equity curve matches realized pnl", prop.ForAll(
		func(steps []float64) bool {
			price := 500.0
			candles := session("2025-01-06", len(steps), func(i int) float64 {
				price += steps[i]
				return price
			})
			decide := func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal {
				c := info.Close
				return buy(c, c-1, c+1, 10)
			}
			engine := NewEngine(fixedSource{candles: candles}, registryFor(decide), WithClock(fixedNow))
			done := terminal(collect(engine.Run(context.Background(), baseConfig())))
			if done.Type != EventComplete {
				return false
			}
			result := done.Data.(Complete)

			for _, p := range result.EquityCurve {
				var realized float64
				for _, tr := range result.Trades {
					if tr.ExitTime <= p.Time {
						realized += tr.PnL
					}
				}
				if p.Equity != 100000+realized {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(150, gen.Float64Range(-3, 3)),
	))

	properties.TestingRun(t)
}
