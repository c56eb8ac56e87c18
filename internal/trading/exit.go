// Package trading holds the exit-trigger rule shared by the backtest engines
// and the live position monitor, plus the trading-day calendar.
package trading

import (
	"fmt"
	"math"
	"strings"

	"github.com/abhishekslab/growwbot/internal/models"
)

// TiePolicy decides the exit when a single bar touches both stop and target.
type TiePolicy int

const (
	// TieProximity picks the level nearer to the bar open. Equal distance picks TARGET.
	TieProximity TiePolicy = iota
	// TieConservative always assumes the stop filled first.
	TieConservative
)

// ParseTiePolicy maps a config value to a TiePolicy. Empty means TieProximity.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "proximity":
		return TieProximity, nil
	case "conservative":
		return TieConservative, nil
	default:
		return TieProximity, fmt.Errorf("unknown tie policy: %s", s)
	}
}

func (p TiePolicy) String() string {
	if p == TieConservative {
		return "conservative"
	}
	return "proximity"
}

// Exit is the outcome of a triggered exit check.
type Exit struct {
	Trigger models.ExitTrigger
	Price   float64
}

// IsLong reports whether a position with this entry and stop is long.
func IsLong(entry, stop float64) bool {
	return entry > stop
}

// CheckTick evaluates a single last traded price against the position levels.
// The exit price is the observed price.
func CheckTick(pos models.Position, ltp float64) (Exit, bool) {
	if IsLong(pos.EntryPrice, pos.StopLoss) {
		switch {
		case ltp <= pos.StopLoss:
			return Exit{Trigger: models.ExitSL, Price: ltp}, true
		case ltp >= pos.Target:
			return Exit{Trigger: models.ExitTarget, Price: ltp}, true
		}
		return Exit{}, false
	}

	switch {
	case ltp >= pos.StopLoss:
		return Exit{Trigger: models.ExitSL, Price: ltp}, true
	case ltp <= pos.Target:
		return Exit{Trigger: models.ExitTarget, Price: ltp}, true
	}
	return Exit{}, false
}

// CheckBar evaluates one OHLC bar against the position levels. A triggered
// exit fills at the touched level.
func CheckBar(pos models.Position, bar models.Candle, policy TiePolicy) (Exit, bool) {
	target := Exit{Trigger: models.ExitTarget, Price: pos.Target}
	stop := Exit{Trigger: models.ExitSL, Price: pos.StopLoss}

	var hitTarget, hitStop bool
	if IsLong(pos.EntryPrice, pos.StopLoss) {
		hitTarget = bar.High >= pos.Target
		hitStop = bar.Low <= pos.StopLoss
	} else {
		hitTarget = bar.Low <= pos.Target
		hitStop = bar.High >= pos.StopLoss
	}

	switch {
	case hitTarget && hitStop:
		if policy == TieConservative {
			return stop, true
		}
		if math.Abs(pos.Target-bar.Open) <= math.Abs(bar.Open-pos.StopLoss) {
			return target, true
		}
		return stop, true
	case hitTarget:
		return target, true
	case hitStop:
		return stop, true
	}
	return Exit{}, false
}

// TimeExpired reports whether a position opened at entryTime has been held for
// at least maxMinutes by barTime. Times are unix seconds. maxMinutes <= 0 never expires.
func TimeExpired(entryTime, barTime int64, maxMinutes int) bool {
	if maxMinutes <= 0 {
		return false
	}
	return barTime-entryTime >= int64(maxMinutes)*60
}
