package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/abhishekslab/growwbot/internal/models"
)

// sessionOpen is 2025-01-06 09:15 IST.
var sessionOpen = time.Date(2025, 1, 6, 3, 45, 0, 0, time.UTC).Unix()

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 1000.0),
		"High":   gen.Float64Range(100.0, 1000.0),
		"Low":    gen.Float64Range(100.0, 1000.0),
		"Close":  gen.Float64Range(100.0, 1000.0),
		"Volume": gen.Int64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		// Ensure OHLC constraints: High >= max(Open, Close) and Low <= min(Open, Close)
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.High <= c.Low {
			c.High = c.Low + 1.0
		}
		return c
	})
}

// candleSliceGen generates a slice of valid 5-minute candles in one session
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			candles = append(candles, candles[len(candles)-1])
		}
		for i := range candles {
			candles[i].Time = sessionOpen + int64(i)*300
		}
		return candles
	})
}

// Property: RSI is always within [0, 100] and 50 when data is short.
func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			values, err := NewRSI(14).Calculate(candles)
			if err != nil {
				return false
			}
			for _, v := range values[14:] {
				if math.IsNaN(v) || v < 0 || v > 100 {
					return false
				}
			}
			r := CurrentRSI(candles, 14).Current
			return r >= 0 && r <= 100
		},
		candleSliceGen(20, 60),
	))

	properties.Property("short input reads neutral", prop.ForAll(
		func(candles []models.Candle) bool {
			r := CurrentRSI(candles[:10], 14)
			return r.Current == 50 && r.Zone == ZoneNeutral
		},
		candleSliceGen(10, 10),
	))

	properties.TestingRun(t)
}

// Property: ATR is non-negative and bounded by the largest true range.
func TestProperty_ATRBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("0 <= ATR <= max TR", prop.ForAll(
		func(candles []models.Candle) bool {
			atr := CurrentATR(candles, 14)
			var maxTR float64
			for i := 1; i < len(candles); i++ {
				maxTR = math.Max(maxTR, trueRange(candles[i], candles[i-1]))
			}
			return atr >= 0 && atr <= maxTR+0.01
		},
		candleSliceGen(15, 60),
	))

	properties.TestingRun(t)
}

// Property: session VWAP lies within the session's low/high range.
func TestProperty_VWAPWithinRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("low <= VWAP <= high", prop.ForAll(
		func(candles []models.Candle) bool {
			low, high := math.Inf(1), math.Inf(-1)
			for _, c := range candles {
				low = math.Min(low, c.Low)
				high = math.Max(high, c.High)
			}
			v := SessionVWAP(candles, 0).VWAP
			return v >= low-0.01 && v <= high+0.01
		},
		candleSliceGen(1, 40),
	))

	properties.TestingRun(t)
}

func TestCalculateEMA_SeedAndPadding(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}
	ema := CalculateEMA(values, 3)

	if !math.IsNaN(ema[0]) || !math.IsNaN(ema[1]) {
		t.Errorf("expected NaN padding, got %v", ema[:2])
	}
	if ema[2] != 2 {
		t.Errorf("seed = %v, want SMA 2", ema[2])
	}
	// k = 0.5: 4*0.5 + 2*0.5 = 3
	if ema[3] != 3 {
		t.Errorf("ema[3] = %v, want 3", ema[3])
	}

	short := CalculateEMA([]float64{1, 2}, 3)
	for _, v := range short {
		if !math.IsNaN(v) {
			t.Errorf("short input should be all NaN, got %v", short)
		}
	}
}

func TestCurrentATR_Insufficient(t *testing.T) {
	candles := make([]models.Candle, 14)
	if got := CurrentATR(candles, 14); got != 0 {
		t.Errorf("ATR with 14 candles = %v, want 0", got)
	}
}

func TestSessionVWAP_ResetsOnNewDay(t *testing.T) {
	day1 := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2025, 1, 7, 4, 0, 0, 0, time.UTC).Unix()
	candles := []models.Candle{
		{Time: day1, High: 500, Low: 500, Close: 500, Volume: 1000},
		{Time: day2, High: 100, Low: 100, Close: 100, Volume: 10},
		{Time: day2 + 300, High: 110, Low: 110, Close: 110, Volume: 10},
	}
	r := SessionVWAP(candles, 0)
	if r.VWAP != 105 {
		t.Errorf("VWAP = %v, want 105 from day two only", r.VWAP)
	}
	if !r.AboveVWAP {
		t.Error("close 110 should be above VWAP 105")
	}
}

func TestAnalyzeVolume(t *testing.T) {
	candles := make([]models.Candle, 21)
	for i := range candles {
		candles[i].Volume = 100
	}
	candles[20].Volume = 250

	r := AnalyzeVolume(candles, 20)
	if r.Ratio != 2.5 || !r.Confirmed {
		t.Errorf("ratio = %v confirmed = %v, want 2.5 true", r.Ratio, r.Confirmed)
	}

	if r := AnalyzeVolume(candles[:1], 20); r.Ratio != 0 {
		t.Errorf("single candle ratio = %v, want 0", r.Ratio)
	}
}
