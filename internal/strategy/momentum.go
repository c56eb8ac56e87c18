package strategy

import (
	"fmt"
	"math"

	"github.com/abhishekslab/growwbot/internal/analysis/indicators"
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/models"
)

// MomentumScalpID is the registry ID of the momentum scalper.
const MomentumScalpID = "momentum_scalp"

// MomentumParams tunes MomentumScalp.
type MomentumParams struct {
	EMAFast         int     `mapstructure:"ema_fast"`
	EMASlow         int     `mapstructure:"ema_slow"`
	RSIMin          float64 `mapstructure:"rsi_min"`
	RSIMax          float64 `mapstructure:"rsi_max"`
	VolumeThreshold float64 `mapstructure:"volume_threshold"`
	ATRTargetMult   float64 `mapstructure:"atr_target_mult"`
	ATRSLMult       float64 `mapstructure:"atr_sl_mult"`
	FeeSafetyMargin float64 `mapstructure:"fee_safety_margin"`
}

// DefaultMomentumParams returns the stock momentum thresholds.
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		EMAFast:         9,
		EMASlow:         21,
		RSIMin:          40,
		RSIMax:          65,
		VolumeThreshold: 1.5,
		ATRTargetMult:   1.5,
		ATRSLMult:       1.0,
		FeeSafetyMargin: 0.5,
	}
}

const (
	rejectEMABearish  = "ema_bearish"
	rejectNoCrossover = "no_crossover"
	rejectRSIRange    = "rsi_out_of_range"
	rejectVolumeLow   = "volume_low"
	rejectBelowVWAP   = "below_vwap"
)

// MomentumScalp buys a fresh fast/slow EMA crossover confirmed by RSI,
// volume and VWAP, targeting an ATR multiple.
type MomentumScalp struct {
	base
	p MomentumParams
}

// NewMomentumScalp creates a momentum scalper.
func NewMomentumScalp(p MomentumParams) *MomentumScalp {
	labels := map[string]string{
		rejectHistory:     "Insufficient History",
		rejectEMABearish:  fmt.Sprintf("EMA Bearish (EMA%d ≤ EMA%d) - no uptrend", p.EMAFast, p.EMASlow),
		rejectNoCrossover: "No Recent Crossover (last 3 bars)",
		rejectRSIRange:    fmt.Sprintf("RSI Out of Range (must be %g–%g)", p.RSIMin, p.RSIMax),
		rejectVolumeLow:   fmt.Sprintf("Volume Below %g× Average", p.VolumeThreshold),
		rejectBelowVWAP:   "Price Below VWAP",
		rejectATR:         "ATR Unavailable",
		rejectZeroSize:    "Position Size Zero",
		rejectFeeMargin:   "Fee Margin Too High for ATR-based target",
	}
	return &MomentumScalp{base: newBase(MomentumScalpID, labels), p: p}
}

// Evaluate implements Evaluator.
func (m *MomentumScalp) Evaluate(symbol string, history []models.Candle, ltp float64, _ models.Candidate) (*models.AlgoSignal, error) {
	if len(history) < MinHistory {
		return m.reject(rejectHistory)
	}

	closes := make([]float64, len(history))
	for i, c := range history {
		closes[i] = c.Close
	}
	fast := indicators.CalculateEMA(closes, m.p.EMAFast)
	slow := indicators.CalculateEMA(closes, m.p.EMASlow)

	last := len(closes) - 1
	if math.IsNaN(fast[last]) || math.IsNaN(slow[last]) || fast[last] <= slow[last] {
		return m.reject(rejectEMABearish)
	}
	if !recentCrossover(fast, slow, 3) {
		return m.reject(rejectNoCrossover)
	}

	rsi := indicators.CurrentRSI(history, 14).Current
	if rsi < m.p.RSIMin || rsi > m.p.RSIMax {
		return m.reject(rejectRSIRange)
	}

	vol := indicators.AnalyzeVolume(history, 20)
	if vol.Ratio < m.p.VolumeThreshold {
		return m.reject(rejectVolumeLow)
	}

	vwap := indicators.SessionVWAP(history, ltp)
	if !vwap.AboveVWAP {
		return m.reject(rejectBelowVWAP)
	}

	atr := indicators.CurrentATR(history, 14)
	if atr <= 0 {
		return m.reject(rejectATR)
	}

	entry := ltp
	target := fees.Round2(entry + atr*m.p.ATRTargetMult)
	stop := fees.Round2(entry - atr*m.p.ATRSLMult)

	sz, key, ok := m.size(entry, stop, target, m.p.FeeSafetyMargin)
	if !ok {
		return m.reject(key)
	}

	return &models.AlgoSignal{
		AlgoID:     m.id,
		Symbol:     symbol,
		Action:     models.ActionBuy,
		EntryPrice: entry,
		StopLoss:   stop,
		Target:     target,
		Quantity:   sz.quantity,
		Confidence: fees.Round(math.Min(1, (rsi-30)/35*vol.Ratio/2), 2),
		Reason: fmt.Sprintf("EMA %d/%d crossover, RSI %.1f, Vol %.1fx, Above VWAP %.2f, ATR %.2f, Target +%.2f (%.1fx ATR)",
			m.p.EMAFast, m.p.EMASlow, rsi, vol.Ratio, vwap.VWAP, atr, sz.targetMove, m.p.ATRTargetMult),
		FeeBreakeven:   sz.feeBreakeven,
		ExpectedProfit: sz.expectedProfit,
	}, nil
}

// recentCrossover reports whether fast crossed above slow within the last n bars.
func recentCrossover(fast, slow []float64, n int) bool {
	for i := len(fast) - n; i < len(fast); i++ {
		if i < 1 {
			continue
		}
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) || math.IsNaN(fast[i-1]) || math.IsNaN(slow[i-1]) {
			continue
		}
		if fast[i] > slow[i] && fast[i-1] <= slow[i-1] {
			return true
		}
	}
	return false
}
