package backtest

import (
	"math"
	"sort"

	"github.com/abhishekslab/growwbot/internal/fees"
	"github.com/abhishekslab/growwbot/internal/models"
)

const tradingDaysPerYear = 252

// ComputeMetrics derives the performance summary of a run from its closed
// trades and equity curve.
func ComputeMetrics(initial float64, trades []models.ClosedTrade, curve []models.EquityPoint) models.Metrics {
	var (
		netPnL, totalFees      float64
		wins, losses, lossN    int
		grossProfit, grossLoss float64
		best, worst            float64
		durationSum            float64
	)
	for i, t := range trades {
		netPnL += t.PnL
		totalFees += t.Fees
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else {
			losses++
		}
		if t.PnL < 0 {
			grossLoss += t.PnL
			lossN++
		}
		if i == 0 || t.PnL > best {
			best = t.PnL
		}
		if i == 0 || t.PnL < worst {
			worst = t.PnL
		}
		durationSum += float64(t.ExitTime - t.EntryTime)
	}

	n := len(trades)
	var avgWin, avgLoss, avgDuration, winRate, expectancy float64
	if wins > 0 {
		avgWin = grossProfit / float64(wins)
	}
	if lossN > 0 {
		avgLoss = grossLoss / float64(lossN)
	}
	if n > 0 {
		avgDuration = durationSum / float64(n)
		winRate = float64(wins) / float64(n) * 100
		expectancy = avgWin*float64(wins)/float64(n) + avgLoss*float64(losses)/float64(n)
	}

	var profitFactor *float64
	switch {
	case grossLoss < 0:
		pf := fees.Round(grossProfit/math.Abs(grossLoss), 4)
		profitFactor = &pf
	case grossProfit > 0:
		// unbounded
	default:
		zero := 0.0
		profitFactor = &zero
	}

	finalEquity := initial + netPnL
	if len(curve) > 0 {
		finalEquity = curve[len(curve)-1].Equity
	}
	var totalReturn float64
	if initial > 0 {
		totalReturn = (finalEquity - initial) / initial * 100
	}

	maxDD, maxDDPct := drawdown(initial, curve)
	sharpe, sortino := riskRatios(curve)

	return models.Metrics{
		InitialCapital:     initial,
		FinalEquity:        fees.Round2(finalEquity),
		TotalReturnPct:     fees.Round2(totalReturn),
		TotalFees:          fees.Round2(totalFees),
		NetPnL:             fees.Round2(netPnL),
		TradeCount:         n,
		Wins:               wins,
		Losses:             losses,
		WinRatePct:         fees.Round2(winRate),
		ProfitFactor:       profitFactor,
		Expectancy:         fees.Round2(expectancy),
		MaxDrawdown:        fees.Round2(maxDD),
		MaxDrawdownPct:     fees.Round2(maxDDPct),
		SharpeRatio:        fees.Round(sharpe, 4),
		SortinoRatio:       fees.Round(sortino, 4),
		AvgWin:             fees.Round2(avgWin),
		AvgLoss:            fees.Round2(avgLoss),
		BestTrade:          fees.Round2(best),
		WorstTrade:         fees.Round2(worst),
		AvgDurationSeconds: fees.Round(avgDuration, 1),
	}
}

// drawdown walks the curve with a running peak that starts at initial.
func drawdown(initial float64, curve []models.EquityPoint) (maxDD, maxDDPct float64) {
	peak := initial
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := peak - p.Equity
		if dd > maxDD {
			maxDD = dd
		}
		if peak > 0 {
			if pct := dd / peak * 100; pct > maxDDPct {
				maxDDPct = pct
			}
		}
	}
	return maxDD, maxDDPct
}

// riskRatios annualises day-over-day returns of the last equity seen on each
// calendar day.
func riskRatios(curve []models.EquityPoint) (sharpe, sortino float64) {
	daily := make(map[string]float64)
	for _, p := range curve {
		daily[p.Day()] = p.Equity
	}
	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)

	var returns []float64
	for i := 1; i < len(days); i++ {
		prev := daily[days[i-1]]
		if prev > 0 {
			returns = append(returns, (daily[days[i]]-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0, 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance, downside float64
	var downsideN int
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
		if r < 0 {
			downside += r * r
			downsideN++
		}
	}
	std := math.Sqrt(variance / float64(len(returns)))
	annual := math.Sqrt(tradingDaysPerYear)

	if std > 0 {
		sharpe = mean / std * annual
	}
	if downsideN > 0 {
		if dstd := math.Sqrt(downside / float64(downsideN)); dstd > 0 {
			sortino = mean / dstd * annual
		}
	}
	return sharpe, sortino
}
