package indicators

import (
	"github.com/abhishekslab/growwbot/internal/models"
)

// Session open 09:15 IST expressed in UTC.
const (
	sessionStartHourUTC   = 3
	sessionStartMinuteUTC = 45
)

// VWAP calculates the session-anchored Volume Weighted Average Price.
type VWAP struct{}

// NewVWAP creates a new VWAP indicator.
func NewVWAP() *VWAP {
	return &VWAP{}
}

func (v *VWAP) Name() string {
	return "VWAP"
}

func (v *VWAP) Period() int {
	return 1
}

// Calculate returns the running VWAP, resetting at each session start.
func (v *VWAP) Calculate(candles []models.Candle) ([]float64, error) {
	if len(candles) == 0 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := make([]float64, n)

	var cumulativeTPV, cumulativeVol float64
	for i := 0; i < n; i++ {
		if isSessionStart(candles, i) {
			cumulativeTPV, cumulativeVol = 0, 0
		}
		cumulativeTPV += typicalPrice(candles[i]) * float64(candles[i].Volume)
		cumulativeVol += float64(candles[i].Volume)

		if cumulativeVol != 0 {
			result[i] = cumulativeTPV / cumulativeVol
		}
	}

	return result, nil
}

// isSessionStart reports whether candle i opens a session: it falls in the
// first five minutes after 03:45 UTC or starts a new UTC day.
func isSessionStart(candles []models.Candle, i int) bool {
	t := candles[i].Timestamp()
	if t.Hour() == sessionStartHourUTC && t.Minute() >= sessionStartMinuteUTC && t.Minute() < sessionStartMinuteUTC+5 {
		return true
	}
	if i > 0 {
		return t.Day() != candles[i-1].Timestamp().Day()
	}
	return false
}

// VWAPReading is the session VWAP and where price sits against it.
type VWAPReading struct {
	VWAP      float64
	AboveVWAP bool
}

// SessionVWAP returns the VWAP of the latest session rounded to 2 dp. A
// non-positive ltp compares the last close instead.
func SessionVWAP(candles []models.Candle, ltp float64) VWAPReading {
	if len(candles) == 0 {
		return VWAPReading{}
	}

	start := 0
	for i := len(candles) - 1; i >= 0; i-- {
		if isSessionStart(candles, i) {
			start = i
			break
		}
	}

	var cumulativeTPV, cumulativeVol float64
	for _, c := range candles[start:] {
		cumulativeTPV += typicalPrice(c) * float64(c.Volume)
		cumulativeVol += float64(c.Volume)
	}

	var vwap float64
	if cumulativeVol > 0 {
		vwap = round(cumulativeTPV/cumulativeVol, 2)
	}
	price := ltp
	if price <= 0 {
		price = candles[len(candles)-1].Close
	}
	return VWAPReading{VWAP: vwap, AboveVWAP: price > vwap}
}

// VolumeReading compares the last bar's volume to its lookback average.
type VolumeReading struct {
	Current   int64
	Average   float64
	Ratio     float64
	Confirmed bool
}

// AnalyzeVolume returns the last volume against the mean of up to lookback
// preceding bars. Ratio is rounded to 1 dp; Confirmed means ratio >= 2.
func AnalyzeVolume(candles []models.Candle, lookback int) VolumeReading {
	if len(candles) < 2 {
		return VolumeReading{}
	}

	current := candles[len(candles)-1].Volume
	from := len(candles) - 1 - lookback
	if from < 0 {
		from = 0
	}
	hist := candles[from : len(candles)-1]

	average := float64(current)
	if len(hist) > 0 {
		var total float64
		for _, c := range hist {
			total += float64(c.Volume)
		}
		average = total / float64(len(hist))
	}

	var ratio float64
	if average > 0 {
		ratio = round(float64(current)/average, 1)
	}
	return VolumeReading{
		Current:   current,
		Average:   round(average, 0),
		Ratio:     ratio,
		Confirmed: ratio >= 2.0,
	}
}
