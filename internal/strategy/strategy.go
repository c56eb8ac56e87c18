// Package strategy defines the evaluator contract and the built-in intraday strategies.
package strategy

import (
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/models"
)

// MinHistory is the number of candles a strategy needs before it can signal.
const MinHistory = 30

// Evaluator turns a candle history into an optional entry signal.
// A nil signal with a nil error means no trade.
type Evaluator interface {
	ID() string
	Evaluate(symbol string, history []models.Candle, ltp float64, info models.Candidate) (*models.AlgoSignal, error)
	SetRuntimeParams(capital, riskPercent float64)
}

// SignalAnalyzer is implemented by evaluators that count why bars were rejected.
type SignalAnalyzer interface {
	SignalAnalysis() map[string]int
}

// Info describes a registered strategy.
type Info struct {
	ID          string `json:"algo_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// base carries sizing inputs and rejection counters shared by the built-ins.
// An evaluator instance is owned by one run or one worker.
type base struct {
	id             string
	defaultCapital float64
	defaultRisk    float64
	capital        float64
	riskPercent    float64
	labels         map[string]string
	rejections     map[string]int
}

func newBase(id string, labels map[string]string) base {
	return base{
		id:             id,
		defaultCapital: 100000,
		defaultRisk:    1.0,
		labels:         labels,
		rejections:     make(map[string]int),
	}
}

func (b *base) ID() string {
	return b.id
}

// SetRuntimeParams sets the equity and risk used to size the next signal.
func (b *base) SetRuntimeParams(capital, riskPercent float64) {
	b.capital = capital
	b.riskPercent = riskPercent
}

func (b *base) effectiveCapital() float64 {
	if b.capital > 0 {
		return b.capital
	}
	return b.defaultCapital
}

func (b *base) effectiveRisk() float64 {
	if b.riskPercent > 0 {
		return b.riskPercent
	}
	return b.defaultRisk
}

func (b *base) reject(key string) (*models.AlgoSignal, error) {
	b.rejections[key]++
	return nil, nil
}

// SignalAnalysis returns rejection counts keyed by human-readable label.
func (b *base) SignalAnalysis() map[string]int {
	out := make(map[string]int, len(b.rejections))
	for k, v := range b.rejections {
		label, ok := b.labels[k]
		if !ok {
			label = k
		}
		out[label] += v
	}
	return out
}

// sizing computes quantity and the fee gate shared by the built-ins.
type sizing struct {
	quantity       int
	feeBreakeven   float64
	targetMove     float64
	expectedProfit float64
}

// size returns ok=false when the position rounds to zero shares or the target
// move does not clear breakeven by the safety margin.
func (b *base) size(entry, stop, target, feeMargin float64) (sizing, string, bool) {
	qty := fees.PositionSize(entry, stop, b.effectiveCapital(), b.effectiveRisk())
	if qty <= 0 {
		return sizing{}, rejectZeroSize, false
	}
	breakeven := fees.FeeBreakeven(entry, qty, models.TradeTypeIntraday)
	move := target - entry
	if move <= breakeven*(1+feeMargin) {
		return sizing{}, rejectFeeMargin, false
	}
	return sizing{
		quantity:       qty,
		feeBreakeven:   breakeven,
		targetMove:     move,
		expectedProfit: fees.Round2((move - breakeven) * float64(qty)),
	}, "", true
}

// Rejection keys shared by both strategies.
const (
	rejectHistory   = "insufficient_history"
	rejectATR       = "atr_unavailable"
	rejectZeroSize  = "zero_quantity"
	rejectFeeMargin = "fee_margin"
)
