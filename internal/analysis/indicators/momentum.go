package indicators

import (
	"fmt"
	"math"

	"github.com/abhishekslab/growwbot/internal/models"
)

// RSI zones.
const (
	ZoneOversold   = "OVERSOLD"
	ZoneNeutral    = "NEUTRAL"
	ZoneOverbought = "OVERBOUGHT"
)

// RSI calculates the Relative Strength Index.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period
}

// Calculate returns Wilder RSI values, NaN before index period.
func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := nanSlice(n)
	closes := closePrices(candles)

	var avgGain, avgLoss float64
	for i := 1; i <= r.period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)
	result[r.period] = rsiValue(avgGain, avgLoss)

	for i := r.period + 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(r.period-1) + gain) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + loss) / float64(r.period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	rs := 100.0
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	return 100 - 100/(1+rs)
}

// RSIReading is the latest RSI value and its zone.
type RSIReading struct {
	Current float64
	Zone    string
}

// CurrentRSI returns the last RSI value rounded to 1 dp. Insufficient data
// reads as a neutral 50.
func CurrentRSI(candles []models.Candle, period int) RSIReading {
	values, err := NewRSI(period).Calculate(candles)
	current := 50.0
	if err == nil && !math.IsNaN(values[len(values)-1]) {
		current = values[len(values)-1]
	}

	zone := ZoneNeutral
	switch {
	case current < 30:
		zone = ZoneOversold
	case current > 65:
		zone = ZoneOverbought
	}
	return RSIReading{Current: round(current, 1), Zone: zone}
}
