package backtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abhishekslab/growwbot/internal/candlecache"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/picks"
	"github.com/abhishekslab/growwbot/internal/strategy"
)

const testAlgo = "scripted"

var fixedNow = func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }

// session builds n 5-minute bars starting 09:15 IST on date.
func session(date string, n int, price func(i int) float64) []models.Candle {
	day, _ := time.Parse(models.DateLayout, date)
	start := day.Add(3*time.Hour + 45*time.Minute).Unix()
	candles := make([]models.Candle, n)
	for i := range candles {
		p := price(i)
		candles[i] = models.Candle{
			Time:   start + int64(i)*300,
			Open:   p,
			High:   p + 0.5,
			Low:    p - 0.5,
			Close:  p,
			Volume: 1000,
		}
	}
	return candles
}

func flat(int) float64 { return 100 }

func rising(i int) float64 { return 100 + float64(i)*0.1 }

// fixedSource serves the same candles for every request.
type fixedSource struct {
	candles []models.Candle
	err     error
}

func (f fixedSource) GetCandles(ctx context.Context, req candlecache.Request) ([]models.Candle, error) {
	return f.candles, f.err
}

// sessionSource builds a session per symbol for the requested date.
type sessionSource struct {
	mu     sync.Mutex
	bars   map[string]int
	price  func(i int) float64
	failOn map[string]bool
	calls  []string
}

func (s *sessionSource) GetCandles(ctx context.Context, req candlecache.Request) ([]models.Candle, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Symbol+"@"+req.StartDate)
	s.mu.Unlock()
	if s.failOn[req.Symbol] {
		return nil, errors.New("upstream unavailable")
	}
	n, ok := s.bars[req.Symbol]
	if !ok {
		return nil, nil
	}
	return session(req.StartDate, n, s.price), nil
}

// scripted is an evaluator whose decisions come from a function.
type scripted struct {
	decide  func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal
	capital float64
}

func (s *scripted) ID() string { return testAlgo }

func (s *scripted) SetRuntimeParams(capital, riskPercent float64) { s.capital = capital }

func (s *scripted) Evaluate(symbol string, history []models.Candle, ltp float64, info models.Candidate) (*models.AlgoSignal, error) {
	return s.decide(history, info, s.capital), nil
}

func registryFor(decide func(history []models.Candle, info models.Candidate, capital float64) *models.AlgoSignal) *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register(strategy.Info{ID: testAlgo, Name: "Scripted"}, func() strategy.Evaluator {
		return &scripted{decide: decide}
	})
	return r
}

func buy(entry, stop, target float64, qty int) *models.AlgoSignal {
	return &models.AlgoSignal{
		AlgoID:     testAlgo,
		Action:     models.ActionBuy,
		EntryPrice: entry,
		StopLoss:   stop,
		Target:     target,
		Quantity:   qty,
		Reason:     "scripted",
	}
}

type mapProvider map[string][]models.Candidate

func (m mapProvider) Candidates(ctx context.Context, date string) (*picks.Snapshot, error) {
	snap := &picks.Snapshot{Candidates: m[date], Meta: picks.Meta{Date: date}}
	snap.Count()
	return snap, nil
}

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func ofType(events []Event, t EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func terminal(events []Event) Event {
	if len(events) == 0 {
		return Event{}
	}
	return events[len(events)-1]
}
