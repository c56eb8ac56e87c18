package trading

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/abhishekslab/growwbot/internal/models"
)

func longPosition(entry, stop, target float64) models.Position {
	return models.Position{EntryPrice: entry, StopLoss: stop, Target: target, Quantity: 10}
}

func TestCheckBar_TieBreak(t *testing.T) {
	pos := longPosition(100, 95, 105)
	bar := models.Candle{Open: 100, High: 106, Low: 94, Close: 100}

	exit, ok := CheckBar(pos, bar, TieProximity)
	if !ok {
		t.Fatal("expected exit on bar touching both levels")
	}
	if exit.Trigger != models.ExitTarget || exit.Price != 105 {
		t.Errorf("got %s @ %v, want TARGET @ 105", exit.Trigger, exit.Price)
	}

	exit, _ = CheckBar(pos, bar, TieConservative)
	if exit.Trigger != models.ExitSL || exit.Price != 95 {
		t.Errorf("conservative got %s @ %v, want SL @ 95", exit.Trigger, exit.Price)
	}
}

func TestCheckBar_ProximityPicksNearerLevel(t *testing.T) {
	pos := longPosition(100, 95, 105)
	// Open at 96 sits next to the stop.
	bar := models.Candle{Open: 96, High: 106, Low: 94}
	exit, ok := CheckBar(pos, bar, TieProximity)
	if !ok || exit.Trigger != models.ExitSL {
		t.Errorf("got %v %v, want SL", exit.Trigger, ok)
	}
}

func TestCheckBar_SingleSide(t *testing.T) {
	tests := []struct {
		name    string
		pos     models.Position
		bar     models.Candle
		want    models.ExitTrigger
		price   float64
		trigger bool
	}{
		{"long target", longPosition(100, 95, 105), models.Candle{Open: 101, High: 105, Low: 99}, models.ExitTarget, 105, true},
		{"long stop", longPosition(100, 95, 105), models.Candle{Open: 99, High: 101, Low: 95}, models.ExitSL, 95, true},
		{"long inside", longPosition(100, 95, 105), models.Candle{Open: 100, High: 104.9, Low: 95.1}, "", 0, false},
		{"short target", longPosition(100, 105, 95), models.Candle{Open: 99, High: 101, Low: 94}, models.ExitTarget, 95, true},
		{"short stop", longPosition(100, 105, 95), models.Candle{Open: 101, High: 106, Low: 99}, models.ExitSL, 105, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exit, ok := CheckBar(tt.pos, tt.bar, TieProximity)
			if ok != tt.trigger {
				t.Fatalf("triggered = %v, want %v", ok, tt.trigger)
			}
			if ok && (exit.Trigger != tt.want || exit.Price != tt.price) {
				t.Errorf("got %s @ %v, want %s @ %v", exit.Trigger, exit.Price, tt.want, tt.price)
			}
		})
	}
}

func TestCheckTick(t *testing.T) {
	pos := longPosition(100, 95, 105)
	if exit, ok := CheckTick(pos, 94.5); !ok || exit.Trigger != models.ExitSL || exit.Price != 94.5 {
		t.Errorf("ltp below stop: got %v %v", exit, ok)
	}
	if exit, ok := CheckTick(pos, 105); !ok || exit.Trigger != models.ExitTarget {
		t.Errorf("ltp at target: got %v %v", exit, ok)
	}
	if _, ok := CheckTick(pos, 100); ok {
		t.Error("ltp between levels should not trigger")
	}

	short := longPosition(100, 105, 95)
	if exit, ok := CheckTick(short, 106); !ok || exit.Trigger != models.ExitSL {
		t.Errorf("short ltp above stop: got %v %v", exit, ok)
	}
}

func TestTimeExpired(t *testing.T) {
	if TimeExpired(0, 14*60, 15) {
		t.Error("14 minutes should not expire a 15 minute limit")
	}
	if !TimeExpired(0, 15*60, 15) {
		t.Error("15 minutes should expire a 15 minute limit")
	}
	if TimeExpired(0, 1e6, 0) {
		t.Error("zero limit never expires")
	}
}

func TestParseTiePolicy(t *testing.T) {
	if p, err := ParseTiePolicy(""); err != nil || p != TieProximity {
		t.Errorf("empty -> %v %v", p, err)
	}
	if p, err := ParseTiePolicy("Conservative"); err != nil || p != TieConservative {
		t.Errorf("Conservative -> %v %v", p, err)
	}
	if _, err := ParseTiePolicy("coin-flip"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

// Property: a bar whose range degenerates to one price behaves exactly like a
// tick at that price.
func TestProperty_BarRuleMatchesTickRule(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("flat bar == tick", prop.ForAll(
		func(entry, stopDist, targetDist, price float64) bool {
			pos := longPosition(entry, entry-stopDist, entry+targetDist)
			bar := models.Candle{Open: price, High: price, Low: price, Close: price}

			tickExit, tickOK := CheckTick(pos, price)
			barExit, barOK := CheckBar(pos, bar, TieProximity)
			if tickOK != barOK {
				return false
			}
			return !tickOK || tickExit.Trigger == barExit.Trigger
		},
		gen.Float64Range(50, 5000),
		gen.Float64Range(0.5, 50),
		gen.Float64Range(0.5, 50),
		gen.Float64Range(1, 6000),
	))

	properties.Property("exit price is a position level", prop.ForAll(
		func(entry, stopDist, targetDist, open, spread float64) bool {
			pos := longPosition(entry, entry-stopDist, entry+targetDist)
			bar := models.Candle{Open: open, High: open + spread, Low: open - spread, Close: open}
			exit, ok := CheckBar(pos, bar, TieProximity)
			if !ok {
				return true
			}
			return exit.Price == pos.Target || exit.Price == pos.StopLoss
		},
		gen.Float64Range(50, 5000),
		gen.Float64Range(0.5, 50),
		gen.Float64Range(0.5, 50),
		gen.Float64Range(1, 6000),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}
