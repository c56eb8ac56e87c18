package indicators

import (
	"fmt"

	"github.com/abhishekslab/growwbot/internal/models"
)

// ATR calculates the Average True Range.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *ATR) Period() int {
	return a.period
}

// Calculate returns Wilder ATR values aligned with candles. The true range
// series starts at the second candle, so the first value sits at index period.
func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := nanSlice(n)

	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		tr[i-1] = trueRange(candles[i], candles[i-1])
	}

	atr := mean(tr[:a.period])
	result[a.period] = atr
	for i := a.period; i < len(tr); i++ {
		atr = (atr*float64(a.period-1) + tr[i]) / float64(a.period)
		result[i+1] = atr
	}

	return result, nil
}

// CurrentATR returns the last ATR value rounded to 2 dp, or 0 when there
// are fewer than period+1 candles.
func CurrentATR(candles []models.Candle, period int) float64 {
	values, err := NewATR(period).Calculate(candles)
	if err != nil {
		return 0
	}
	return round(values[len(values)-1], 2)
}
