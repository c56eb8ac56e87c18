package models

import "time"

// ExitTrigger identifies why a position was closed.
type ExitTrigger string

const (
	ExitTarget   ExitTrigger = "TARGET"
	ExitSL       ExitTrigger = "SL"
	ExitTimeExit ExitTrigger = "TIME_EXIT"
	ExitEOD      ExitTrigger = "EOD"
	ExitManual   ExitTrigger = "MANUAL"
)

// Position is an open simulated holding.
type Position struct {
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	Target     float64   `json:"target"`
	Quantity   int       `json:"quantity"`
	EntryTime  int64     `json:"entry_time"`
	TradeType  TradeType `json:"trade_type"`
	Reason     string    `json:"reason"`
}

// IsLong reports whether the stop sits below entry.
func (p Position) IsLong() bool {
	return p.EntryPrice > p.StopLoss
}

// ClosedTrade is an immutable completed round trip.
type ClosedTrade struct {
	Symbol      string      `json:"symbol,omitempty"`
	EntryPrice  float64     `json:"entry_price"`
	ExitPrice   float64     `json:"exit_price"`
	Quantity    int         `json:"quantity"`
	EntryTime   int64       `json:"entry_time"`
	ExitTime    int64       `json:"exit_time"`
	PnL         float64     `json:"pnl"`
	Fees        float64     `json:"fees"`
	ExitTrigger ExitTrigger `json:"exit_trigger"`
	Reason      string      `json:"reason"`
	Date        string      `json:"date,omitempty"`
	TradeType   TradeType   `json:"trade_type,omitempty"`
}

// Duration returns the holding time of the trade.
func (t ClosedTrade) Duration() time.Duration {
	return time.Duration(t.ExitTime-t.EntryTime) * time.Second
}

// TradeStatus is the lifecycle state of a live trade record.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeWon    TradeStatus = "WON"
	TradeLost   TradeStatus = "LOST"
	TradeClosed TradeStatus = "CLOSED"
	TradeFailed TradeStatus = "FAILED"
)

// OrderStatus tracks the broker side of a live trade.
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "PLACED"
	OrderRejected  OrderStatus = "REJECTED"
	OrderFilled    OrderStatus = "FILLED"
	OrderSimulated OrderStatus = "SIMULATED"
)

// Trade is a persisted live or paper trade watched by the position monitor.
type Trade struct {
	ID          int64       `json:"id"`
	Symbol      string      `json:"symbol"`
	TradeType   TradeType   `json:"trade_type"`
	EntryPrice  float64     `json:"entry_price"`
	StopLoss    float64     `json:"stop_loss"`
	Target      float64     `json:"target"`
	Quantity    int         `json:"quantity"`
	CapitalUsed float64     `json:"capital_used"`
	RiskAmount  float64     `json:"risk_amount"`
	Status      TradeStatus `json:"status"`
	ExitPrice   *float64    `json:"exit_price,omitempty"`
	ActualPnL   *float64    `json:"actual_pnl,omitempty"`
	ActualFees  *float64    `json:"actual_fees,omitempty"`
	EntryDate   time.Time   `json:"entry_date"`
	ExitDate    *time.Time  `json:"exit_date,omitempty"`
	IsPaper     bool        `json:"is_paper"`
	OrderStatus OrderStatus `json:"order_status,omitempty"`
	OrderID     string      `json:"order_id,omitempty"`
	ExitTrigger ExitTrigger `json:"exit_trigger,omitempty"`
	AlgoID      string      `json:"algo_id,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Position converts the trade's levels into the shape the exit rule reads.
func (t Trade) Position() Position {
	return Position{
		Symbol:     t.Symbol,
		EntryPrice: t.EntryPrice,
		StopLoss:   t.StopLoss,
		Target:     t.Target,
		Quantity:   t.Quantity,
		EntryTime:  t.EntryDate.Unix(),
		TradeType:  t.TradeType,
	}
}

// TradeUpdate holds the mutable fields of a trade. Nil fields are left unchanged.
type TradeUpdate struct {
	Status      *TradeStatus
	ExitPrice   *float64
	ActualPnL   *float64
	ActualFees  *float64
	ExitDate    *time.Time
	ExitTrigger *ExitTrigger
	OrderStatus *OrderStatus
	OrderID     *string
	Notes       *string
}
