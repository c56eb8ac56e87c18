package fees

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/abhishekslab/growwbot/internal/models"
)

func TestComputeExitPnL_DeliveryLiteral(t *testing.T) {
	// BUY 100 x 10: brokerage 0.30, STT 1.00, exchange 0.0345, SEBI 0.001,
	// stamp 0.03, GST 0.06039 -> 1.43
	// SELL 110 x 10: brokerage 0.33, STT 1.10, exchange 0.03795, SEBI 0.0011,
	// GST 0.066429 -> 1.54
	net, total := DefaultSchedule().ComputeExitPnL(100, 110, 10, models.TradeTypeDelivery)
	if total != 2.97 {
		t.Errorf("total fees = %v, want 2.97", total)
	}
	if net != 97.03 {
		t.Errorf("net pnl = %v, want 97.03", net)
	}
}

func TestCalculate_IntradayBuyHasNoSTT(t *testing.T) {
	s := DefaultSchedule()
	b := s.Breakdown(500, 100, models.OrderSideBuy, models.TradeTypeIntraday)
	if b.STT != 0 {
		t.Errorf("intraday BUY STT = %v, want 0", b.STT)
	}
	if b.StampDuty == 0 {
		t.Error("BUY order should carry stamp duty")
	}

	sell := s.Breakdown(500, 100, models.OrderSideSell, models.TradeTypeIntraday)
	if sell.StampDuty != 0 {
		t.Errorf("SELL stamp duty = %v, want 0", sell.StampDuty)
	}
	if sell.STT == 0 {
		t.Error("intraday SELL should carry STT")
	}
}

func TestCalculate_BrokerageCapped(t *testing.T) {
	b := DefaultSchedule().Breakdown(10000, 1000, models.OrderSideBuy, models.TradeTypeIntraday)
	if b.Brokerage != 20 {
		t.Errorf("brokerage = %v, want flat cap 20", b.Brokerage)
	}
}

func TestPositionSize(t *testing.T) {
	tests := []struct {
		name                   string
		entry, stop, cap, risk float64
		wantMin, wantMax       int
	}{
		{"risk bounded", 2500, 2450, 100000, 1, 1, 40},
		{"zero risk per share", 100, 100, 100000, 1, 0, 0},
		{"capped by capital", 100, 99.99, 10000, 5, 100, 100},
		{"no capital", 100, 95, 0, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PositionSize(tt.entry, tt.stop, tt.cap, tt.risk)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("PositionSize = %d, want in [%d, %d]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestFeeBreakeven(t *testing.T) {
	if got := FeeBreakeven(100, 0, models.TradeTypeIntraday); got != 0 {
		t.Errorf("FeeBreakeven with qty 0 = %v, want 0", got)
	}
	got := FeeBreakeven(1000, 50, models.TradeTypeIntraday)
	if got <= 0 || got > 5 {
		t.Errorf("FeeBreakeven = %v, want small positive per-share amount", got)
	}
}

// Property: fees are deterministic, non-negative and grow with turnover,
// whether the turnover comes from a higher price or a larger quantity.
// Totals are rounded to paise, so a one-share or one-paisa step can leave the
// fee unchanged: only non-decrease holds for small steps. Doubling a turnover
// of at least ₹1,000 always adds more than a paisa, so that step is strict.
func TestProperty_FeesIncreaseWithTurnover(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	s := DefaultSchedule()

	properties.Property("fee grows with price and quantity", prop.ForAll(
		func(price, bump float64, qty int, buy bool, intraday bool) bool {
			side := models.OrderSideSell
			if buy {
				side = models.OrderSideBuy
			}
			tt := models.TradeTypeDelivery
			if intraday {
				tt = models.TradeTypeIntraday
			}
			base := s.Calculate(price, qty, side, tt)
			if base < 0 || base != s.Calculate(price, qty, side, tt) {
				return false
			}
			if s.Calculate(price, qty+1, side, tt) < base || s.Calculate(price*(1+bump), qty, side, tt) < base {
				return false
			}
			if price*float64(qty) >= 1000 {
				return s.Calculate(price, 2*qty, side, tt) > base && s.Calculate(2*price, qty, side, tt) > base
			}
			return true
		},
		gen.Float64Range(1, 50000),
		gen.Float64Range(0, 1),
		gen.IntRange(1, 10000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property: net PnL plus fees reproduces the gross move to within rounding.
func TestProperty_ExitPnLDecomposes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	s := DefaultSchedule()

	properties.Property("net + fees == gross", prop.ForAll(
		func(entry, exit float64, qty int) bool {
			net, total := s.ComputeExitPnL(entry, exit, qty, models.TradeTypeIntraday)
			gross := (exit - entry) * float64(qty)
			return math.Abs(net+total-gross) <= 0.011
		},
		gen.Float64Range(10, 5000),
		gen.Float64Range(10, 5000),
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t)
}
