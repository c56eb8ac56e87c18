package indicators

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/abhishekslab/growwbot/internal/models"
)

var (
	ErrInsufficientData = errors.New("not enough candles for indicator")
	ErrInvalidPeriod    = errors.New("indicator period must be positive")
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// trueRange is the widest of the bar range and the gaps from the prior close.
func trueRange(cur, prev models.Candle) float64 {
	return max(cur.High-cur.Low, math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close))
}

// typicalPrice is (high+low+close)/3.
func typicalPrice(c models.Candle) float64 {
	return (c.High + c.Low + c.Close) / 3
}

func closePrices(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

// nanSlice marks every slot as not yet computed.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// round rounds half away from zero.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
