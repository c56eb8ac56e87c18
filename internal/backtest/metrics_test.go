package backtest

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/abhishekslab/growwbot/internal/models"
)

func TestComputeMetrics_NoTrades(t *testing.T) {
	m := ComputeMetrics(100000, nil, nil)
	if m.TradeCount != 0 || m.FinalEquity != 100000 || m.TotalReturnPct != 0 {
		t.Errorf("unexpected metrics: %+v", m)
	}
	if m.ProfitFactor == nil || *m.ProfitFactor != 0 {
		t.Errorf("profit factor = %v, want 0", m.ProfitFactor)
	}
	if m.SharpeRatio != 0 || m.SortinoRatio != 0 || m.MaxDrawdown != 0 {
		t.Errorf("risk ratios should be zero: %+v", m)
	}
}

func TestComputeMetrics_AllWinsIsUnbounded(t *testing.T) {
	trades := []models.ClosedTrade{{PnL: 100}, {PnL: 50}}
	m := ComputeMetrics(100000, trades, nil)
	if m.ProfitFactor != nil {
		t.Errorf("profit factor = %v, want nil", *m.ProfitFactor)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"profit_factor":null`) {
		t.Errorf("profit_factor should marshal as null: %s", data)
	}
	if m.FinalEquity != 100150 {
		t.Errorf("final equity without curve = %v, want 100150", m.FinalEquity)
	}
}

func TestComputeMetrics_WinsLossesAndExpectancy(t *testing.T) {
	trades := []models.ClosedTrade{
		{PnL: 100, Fees: 10, EntryTime: 0, ExitTime: 600},
		{PnL: -50, Fees: 10, EntryTime: 0, ExitTime: 300},
		{PnL: 0, Fees: 5, EntryTime: 0, ExitTime: 0},
	}
	m := ComputeMetrics(100000, trades, nil)

	if m.Wins != 1 || m.Losses != 2 {
		t.Errorf("wins/losses = %d/%d, want 1/2", m.Wins, m.Losses)
	}
	if m.AvgWin != 100 || m.AvgLoss != -50 {
		t.Errorf("avg win/loss = %v/%v", m.AvgWin, m.AvgLoss)
	}
	if m.Expectancy != 0 {
		t.Errorf("expectancy = %v, want 0", m.Expectancy)
	}
	if m.ProfitFactor == nil || *m.ProfitFactor != 2 {
		t.Errorf("profit factor = %v, want 2", m.ProfitFactor)
	}
	if m.WinRatePct != 33.33 {
		t.Errorf("win rate = %v", m.WinRatePct)
	}
	if m.BestTrade != 100 || m.WorstTrade != -50 {
		t.Errorf("best/worst = %v/%v", m.BestTrade, m.WorstTrade)
	}
	if m.TotalFees != 25 || m.NetPnL != 50 {
		t.Errorf("fees/net = %v/%v", m.TotalFees, m.NetPnL)
	}
	if m.AvgDurationSeconds != 300 {
		t.Errorf("avg duration = %v", m.AvgDurationSeconds)
	}
}

func TestComputeMetrics_DrawdownPeakStartsAtInitial(t *testing.T) {
	m := ComputeMetrics(100000, nil, []models.EquityPoint{{Time: 1, Equity: 95000}})
	if m.MaxDrawdown != 5000 || m.MaxDrawdownPct != 5 {
		t.Errorf("drawdown = %v (%v%%), want 5000 (5%%)", m.MaxDrawdown, m.MaxDrawdownPct)
	}

	curve := []models.EquityPoint{
		{Time: 1, Equity: 100000},
		{Time: 2, Equity: 101000},
		{Time: 3, Equity: 99000},
		{Time: 4, Equity: 102000},
	}
	m = ComputeMetrics(100000, nil, curve)
	if m.MaxDrawdown != 2000 || m.MaxDrawdownPct != 1.98 {
		t.Errorf("drawdown = %v (%v%%), want 2000 (1.98%%)", m.MaxDrawdown, m.MaxDrawdownPct)
	}
	if m.FinalEquity != 102000 || m.TotalReturnPct != 2 {
		t.Errorf("final/return = %v/%v", m.FinalEquity, m.TotalReturnPct)
	}
}

func TestComputeMetrics_SharpeAndSortino(t *testing.T) {
	annual := math.Sqrt(252)

	// Daily returns 0.10 and 0.05; no downside.
	curve := []models.EquityPoint{
		{Date: "2025-01-06", Equity: 100},
		{Date: "2025-01-07", Equity: 110},
		{Date: "2025-01-08", Equity: 115.5},
	}
	m := ComputeMetrics(100, nil, curve)
	if math.Abs(m.SharpeRatio-3*annual) > 1e-3 {
		t.Errorf("sharpe = %v, want %v", m.SharpeRatio, 3*annual)
	}
	if m.SortinoRatio != 0 {
		t.Errorf("sortino = %v, want 0 without losing days", m.SortinoRatio)
	}

	// Daily returns 0.20 and -0.05.
	curve = []models.EquityPoint{
		{Date: "2025-01-06", Equity: 100},
		{Date: "2025-01-07", Equity: 120},
		{Date: "2025-01-08", Equity: 114},
	}
	m = ComputeMetrics(100, nil, curve)
	if math.Abs(m.SortinoRatio-1.5*annual) > 1e-3 {
		t.Errorf("sortino = %v, want %v", m.SortinoRatio, 1.5*annual)
	}

	// Constant returns have zero deviation.
	curve = []models.EquityPoint{
		{Date: "2025-01-06", Equity: 100},
		{Date: "2025-01-07", Equity: 110},
		{Date: "2025-01-08", Equity: 121},
	}
	if m := ComputeMetrics(100, nil, curve); m.SharpeRatio != 0 {
		t.Errorf("sharpe = %v, want 0 for constant returns", m.SharpeRatio)
	}
}

func TestComputeMetrics_BucketsIntradayCurveByDay(t *testing.T) {
	day1 := int64(1736135100) // 2025-01-06 03:45 UTC
	day2 := day1 + 86400
	curve := []models.EquityPoint{
		{Time: day1, Equity: 100},
		{Time: day1 + 300, Equity: 90}, // last of day 1 counts
		{Time: day2, Equity: 99},
	}
	m := ComputeMetrics(100, nil, curve)
	// One return of +10%: deviation is zero.
	if m.SharpeRatio != 0 {
		t.Errorf("sharpe = %v, want 0", m.SharpeRatio)
	}
	if m.MaxDrawdown != 10 {
		t.Errorf("drawdown = %v, want 10", m.MaxDrawdown)
	}
}
