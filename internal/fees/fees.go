// Package fees computes NSE/BSE order charges and fee-adjusted exit PnL.
package fees

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/abhishekslab/growwbot/internal/models"
)

// Schedule holds the charge rates applied to a single order.
type Schedule struct {
	BrokerageFlat   float64 `mapstructure:"brokerage_flat" json:"brokerage_flat"`
	BrokeragePct    float64 `mapstructure:"brokerage_pct" json:"brokerage_pct"`
	STTIntradaySell float64 `mapstructure:"stt_intraday_sell" json:"stt_intraday_sell"`
	STTDelivery     float64 `mapstructure:"stt_delivery" json:"stt_delivery"`
	ExchangeTxn     float64 `mapstructure:"exchange_txn" json:"exchange_txn"`
	SEBI            float64 `mapstructure:"sebi" json:"sebi"`
	StampDutyBuy    float64 `mapstructure:"stamp_duty_buy" json:"stamp_duty_buy"`
	GST             float64 `mapstructure:"gst" json:"gst"`
}

// DefaultSchedule returns the standard discount-broker equity schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		BrokerageFlat:   20,
		BrokeragePct:    0.0003,
		STTIntradaySell: 0.00025,
		STTDelivery:     0.001,
		ExchangeTxn:     0.0000345,
		SEBI:            0.000001,
		StampDutyBuy:    0.00003,
		GST:             0.18,
	}
}

var current = DefaultSchedule()

// SetSchedule replaces the package schedule used by Calculate and ComputeExitPnL.
// It is meant to be called once at startup.
func SetSchedule(s Schedule) {
	current = s
}

// Current returns the package schedule.
func Current() Schedule {
	return current
}

// Breakdown itemises the charges of one order.
type Breakdown struct {
	Brokerage   float64 `json:"brokerage"`
	STT         float64 `json:"stt"`
	ExchangeTxn float64 `json:"exchange_txn"`
	SEBI        float64 `json:"sebi"`
	StampDuty   float64 `json:"stamp_duty"`
	GST         float64 `json:"gst"`
	Total       float64 `json:"total"`
}

// Breakdown returns the itemised charges for one order. Total is rounded to 2 dp.
func (s Schedule) Breakdown(price float64, qty int, side models.OrderSide, tradeType models.TradeType) Breakdown {
	turnover := price * float64(qty)
	b := Breakdown{
		Brokerage:   math.Min(s.BrokerageFlat, turnover*s.BrokeragePct),
		ExchangeTxn: turnover * s.ExchangeTxn,
		SEBI:        turnover * s.SEBI,
	}

	if tradeType == models.TradeTypeIntraday {
		if side == models.OrderSideSell {
			b.STT = turnover * s.STTIntradaySell
		}
	} else {
		b.STT = turnover * s.STTDelivery
	}
	if side == models.OrderSideBuy {
		b.StampDuty = turnover * s.StampDutyBuy
	}
	b.GST = (b.Brokerage + b.ExchangeTxn + b.SEBI) * s.GST

	b.Total = Round2(b.Brokerage + b.STT + b.ExchangeTxn + b.SEBI + b.StampDuty + b.GST)
	return b
}

// Calculate returns the total charges for one order rounded to 2 dp.
func (s Schedule) Calculate(price float64, qty int, side models.OrderSide, tradeType models.TradeType) float64 {
	return s.Breakdown(price, qty, side, tradeType).Total
}

// ComputeExitPnL returns the fee-adjusted net PnL and the round-trip fees of a long trade.
func (s Schedule) ComputeExitPnL(entry, exit float64, qty int, tradeType models.TradeType) (net, total float64) {
	gross := (exit - entry) * float64(qty)
	total = s.Calculate(entry, qty, models.OrderSideBuy, tradeType) +
		s.Calculate(exit, qty, models.OrderSideSell, tradeType)
	return Round2(gross - total), Round2(total)
}

// Calculate returns the total charges for one order using the package schedule.
func Calculate(price float64, qty int, side models.OrderSide, tradeType models.TradeType) float64 {
	return current.Calculate(price, qty, side, tradeType)
}

// ComputeExitPnL returns net PnL and round-trip fees using the package schedule.
func ComputeExitPnL(entry, exit float64, qty int, tradeType models.TradeType) (net, total float64) {
	return current.ComputeExitPnL(entry, exit, qty, tradeType)
}

// FeeBreakeven returns the per-share price move that pays for a round trip
// entered and exited at entry.
func FeeBreakeven(entry float64, qty int, tradeType models.TradeType) float64 {
	if qty <= 0 {
		return 0
	}
	total := Calculate(entry, qty, models.OrderSideBuy, tradeType) +
		Calculate(entry, qty, models.OrderSideSell, tradeType)
	return Round(total/float64(qty), 4)
}

// PositionSize returns the share count risking riskPct of capital between
// entry and stop, capped by what capital can buy outright.
func PositionSize(entry, stop, capital, riskPct float64) int {
	riskPerShare := math.Abs(entry - stop)
	if riskPerShare <= 0 || entry <= 0 || capital <= 0 || riskPct <= 0 {
		return 0
	}
	qty := int(capital * riskPct / 100 / riskPerShare)
	if maxQty := int(capital / entry); qty > maxQty {
		qty = maxQty
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// Round rounds half away from zero to the given decimal places.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 rounds a currency amount to paise.
func Round2(v float64) float64 {
	return Round(v, 2)
}
