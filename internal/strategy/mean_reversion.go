package strategy

import (
	"fmt"
	"math"

	"github.com/abhishekslab/growwbot/internal/analysis/indicators"
	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/models"
)

// MeanReversionID is the registry ID of the VWAP mean-reversion strategy.
const MeanReversionID = "mean_reversion"

// MeanReversionParams tunes MeanReversion.
type MeanReversionParams struct {
	VWAPDistanceATRMin float64 `mapstructure:"vwap_distance_atr_min"`
	RSIMax             float64 `mapstructure:"rsi_max"`
	VolumeThreshold    float64 `mapstructure:"volume_threshold"`
	ATRSLMult          float64 `mapstructure:"atr_sl_mult"`
	FeeSafetyMargin    float64 `mapstructure:"fee_safety_margin"`
}

// DefaultMeanReversionParams returns the stock mean-reversion thresholds.
func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		VWAPDistanceATRMin: 1.0,
		RSIMax:             35,
		VolumeThreshold:    2.0,
		ATRSLMult:          1.5,
		FeeSafetyMargin:    0.5,
	}
}

const (
	rejectAboveVWAP    = "above_vwap"
	rejectVWAPDistance = "vwap_distance"
	rejectNotOversold  = "rsi_not_oversold"
)

// MeanReversion buys an oversold stretch below session VWAP on a volume
// spike and targets the VWAP itself.
type MeanReversion struct {
	base
	p MeanReversionParams
}

// NewMeanReversion creates a mean-reversion evaluator.
func NewMeanReversion(p MeanReversionParams) *MeanReversion {
	labels := map[string]string{
		rejectHistory:      "Insufficient History",
		rejectAboveVWAP:    "Price Not Below VWAP",
		rejectATR:          "ATR Unavailable",
		rejectVWAPDistance: fmt.Sprintf("VWAP Distance Below %g× ATR", p.VWAPDistanceATRMin),
		rejectNotOversold:  fmt.Sprintf("RSI Not Oversold (must be ≤ %g)", p.RSIMax),
		rejectVolumeLow:    fmt.Sprintf("Volume Below %g× Average", p.VolumeThreshold),
		rejectZeroSize:     "Position Size Zero",
		rejectFeeMargin:    "Fee Margin Too High for VWAP target",
	}
	return &MeanReversion{base: newBase(MeanReversionID, labels), p: p}
}

// Evaluate implements Evaluator.
func (m *MeanReversion) Evaluate(symbol string, history []models.Candle, ltp float64, _ models.Candidate) (*models.AlgoSignal, error) {
	if len(history) < MinHistory {
		return m.reject(rejectHistory)
	}

	entry := ltp
	vwap := indicators.SessionVWAP(history, ltp)
	if vwap.VWAP <= 0 || vwap.AboveVWAP {
		return m.reject(rejectAboveVWAP)
	}

	atr := indicators.CurrentATR(history, 14)
	if atr <= 0 {
		return m.reject(rejectATR)
	}

	distance := vwap.VWAP - entry
	if distance < atr*m.p.VWAPDistanceATRMin {
		return m.reject(rejectVWAPDistance)
	}

	rsi := indicators.CurrentRSI(history, 14).Current
	if rsi > m.p.RSIMax {
		return m.reject(rejectNotOversold)
	}

	vol := indicators.AnalyzeVolume(history, 20)
	if vol.Ratio < m.p.VolumeThreshold {
		return m.reject(rejectVolumeLow)
	}

	target := fees.Round2(vwap.VWAP)
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
		Confidence: fees.Round(math.Min(1, (35-rsi)/20*vol.Ratio/3), 2),
		Reason: fmt.Sprintf("Below VWAP %.2f by %.2f (%.1fx ATR), RSI %.1f (oversold), Vol %.1fx spike, Target=VWAP",
			vwap.VWAP, distance, distance/atr, rsi, vol.Ratio),
		FeeBreakeven:   sz.feeBreakeven,
		ExpectedProfit: sz.expectedProfit,
	}, nil
}
