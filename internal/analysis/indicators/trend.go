// Package indicators provides the technical indicators the intraday strategies read.
package indicators

import (
	"fmt"

	"github.com/abhishekslab/growwbot/internal/models"
)

// Indicator defines the interface for series indicators.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// EMA calculates Exponential Moving Average.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

// Calculate returns the EMA of closes, NaN before the seed index.
func (e *EMA) Calculate(candles []models.Candle) ([]float64, error) {
	if e.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < e.period {
		return nil, ErrInsufficientData
	}
	return CalculateEMA(closePrices(candles), e.period), nil
}

// CalculateEMA calculates EMA on a slice of values. The first period-1 entries
// are NaN and entry period-1 is the SMA seed. Short input is all NaN.
func CalculateEMA(values []float64, period int) []float64 {
	n := len(values)
	result := nanSlice(n)
	if period <= 0 || n < period {
		return result
	}

	result[period-1] = mean(values[:period])

	k := 2.0 / float64(period+1)
	for i := period; i < n; i++ {
		result[i] = values[i]*k + result[i-1]*(1-k)
	}

	return result
}
