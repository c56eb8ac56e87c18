// Package backtest runs strategies over historical candles and streams the
// run as a sequence of events.
package backtest

import (
	"encoding/json"
	"fmt"

	"github.com/abhishekslab/growwbot/internal/models"
)

// EventType names an event in the stream.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventTrade       EventType = "trade"
	EventDayStart    EventType = "day_start"
	EventDayComplete EventType = "day_complete"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event is one item of a run stream. Data holds one of the payload types
// below and is flattened next to "event_type" when marshalled.
type Event struct {
	Type EventType
	Data any
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// MarshalJSON renders the payload fields plus event_type in a single object.
func (e Event) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("event payload %T is not an object: %w", e.Data, err)
		}
	}
	t, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	fields["event_type"] = t
	return json.Marshal(fields)
}

// Progress reports how far a single-symbol run has walked.
type Progress struct {
	Percent       float64 `json:"percent"`
	CurrentDate   string  `json:"current_date"`
	BarsProcessed int     `json:"bars_processed"`
	TotalBars     int     `json:"total_bars"`
}

// TradeClosed carries a completed round trip. Date and Symbol are set by the
// daily-picks engine only.
type TradeClosed struct {
	Date   string             `json:"date,omitempty"`
	Trade  models.ClosedTrade `json:"trade"`
	Symbol string             `json:"symbol,omitempty"`
}

// DayStart opens a daily-picks trading day.
type DayStart struct {
	Date                string   `json:"date"`
	CandidatesCount     int      `json:"candidates_count"`
	HighConvictionCount *int     `json:"high_conviction_count,omitempty"`
	Day                 int      `json:"day"`
	TotalDays           int      `json:"total_days"`
	CurrentEquity       *float64 `json:"current_equity,omitempty"`
}

// DayComplete closes a daily-picks trading day after all its trades settled.
type DayComplete struct {
	Date          string  `json:"date"`
	DailyPnL      float64 `json:"daily_pnl"`
	DailyFees     float64 `json:"daily_fees"`
	TradesCount   int     `json:"trades_count"`
	CurrentEquity float64 `json:"current_equity"`
	Day           int     `json:"day"`
	TotalDays     int     `json:"total_days"`
}

// Complete is the terminal payload of a successful run.
type Complete struct {
	Metrics        models.Metrics       `json:"metrics"`
	Trades         []models.ClosedTrade `json:"trades"`
	EquityCurve    []models.EquityPoint `json:"equity_curve"`
	SignalAnalysis map[string]int       `json:"signal_analysis,omitempty"`
	AlgoID         string               `json:"algo_id,omitempty"`
	CandleInterval string               `json:"candle_interval,omitempty"`
}

// Failure is the terminal payload of a run that could not start or could not
// load its data.
type Failure struct {
	Error string `json:"error"`
}

func progressEvent(p Progress) Event       { return Event{Type: EventProgress, Data: p} }
func tradeEvent(t TradeClosed) Event       { return Event{Type: EventTrade, Data: t} }
func dayStartEvent(d DayStart) Event       { return Event{Type: EventDayStart, Data: d} }
func dayCompleteEvent(d DayComplete) Event { return Event{Type: EventDayComplete, Data: d} }
func completeEvent(c Complete) Event       { return Event{Type: EventComplete, Data: c} }

func errorEvent(format string, args ...any) Event {
	return Event{Type: EventError, Data: Failure{Error: fmt.Sprintf(format, args...)}}
}
