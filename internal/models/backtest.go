package models

import (
	"encoding/json"
	"time"
)

// EquityPoint is one sample of the equity curve. Single-symbol runs set
// Time; daily-picks runs set Date and the daily annotations.
type EquityPoint struct {
	Time      int64    `json:"time,omitempty"`
	Date      string   `json:"date,omitempty"`
	Equity    float64  `json:"equity"`
	DailyPnL  *float64 `json:"daily_pnl,omitempty"`
	DailyFees *float64 `json:"daily_fees,omitempty"`
}

// Day returns the calendar bucket of the point.
func (p EquityPoint) Day() string {
	if p.Date != "" {
		return p.Date
	}
	return time.Unix(p.Time, 0).UTC().Format(DateLayout)
}

// Metrics is the aggregate performance snapshot of a backtest run.
type Metrics struct {
	InitialCapital     float64  `json:"initial_capital"`
	FinalEquity        float64  `json:"final_equity"`
	TotalReturnPct     float64  `json:"total_return_pct"`
	TotalFees          float64  `json:"total_fees"`
	NetPnL             float64  `json:"net_pnl"`
	TradeCount         int      `json:"trade_count"`
	Wins               int      `json:"wins"`
	Losses             int      `json:"losses"`
	WinRatePct         float64  `json:"win_rate_pct"`
	ProfitFactor       *float64 `json:"profit_factor"` // nil when unbounded
	Expectancy         float64  `json:"expectancy"`
	MaxDrawdown        float64  `json:"max_drawdown"`
	MaxDrawdownPct     float64  `json:"max_drawdown_pct"`
	SharpeRatio        float64  `json:"sharpe_ratio"`
	SortinoRatio       float64  `json:"sortino_ratio"`
	AvgWin             float64  `json:"avg_win"`
	AvgLoss            float64  `json:"avg_loss"`
	BestTrade          float64  `json:"best_trade"`
	WorstTrade         float64  `json:"worst_trade"`
	AvgDurationSeconds float64  `json:"avg_duration_seconds"`

	// Daily-picks runs only.
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	TotalDays   int      `json:"total_days,omitempty"`
	TradingDays []string `json:"trading_days,omitempty"`
}

// BacktestRun is a persisted backtest result.
type BacktestRun struct {
	ID          int64           `json:"id"`
	AlgoID      string          `json:"algo_id"`
	Symbol      string          `json:"symbol"`
	Exchange    string          `json:"exchange"`
	Segment     string          `json:"segment"`
	Interval    string          `json:"interval"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Config      json.RawMessage `json:"config,omitempty"`
	Metrics     *Metrics        `json:"metrics,omitempty"`
	Trades      []ClosedTrade   `json:"trades,omitempty"`
	EquityCurve []EquityPoint   `json:"equity_curve,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
