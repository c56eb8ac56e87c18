package models

// SignalAction is the decision of a strategy evaluation.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSkip SignalAction = "SKIP"
)

// AlgoSignal is a strategy's output for one evaluation.
type AlgoSignal struct {
	AlgoID         string       `json:"algo_id"`
	Symbol         string       `json:"symbol"`
	Action         SignalAction `json:"action"`
	EntryPrice     float64      `json:"entry_price"`
	StopLoss       float64      `json:"stop_loss"`
	Target         float64      `json:"target"`
	Quantity       int          `json:"quantity"`
	Confidence     float64      `json:"confidence"`
	Reason         string       `json:"reason"`
	FeeBreakeven   float64      `json:"fee_breakeven"`
	ExpectedProfit float64      `json:"expected_profit"`
}

// IsBuy reports whether the signal asks to open a position.
func (s *AlgoSignal) IsBuy() bool {
	return s != nil && s.Action == ActionBuy
}

// Candidate is one daily-picks row plus the bar being evaluated.
type Candidate struct {
	Symbol                    string  `json:"symbol" yaml:"symbol"`
	Name                      string  `json:"name,omitempty" yaml:"name"`
	LTP                       float64 `json:"ltp,omitempty" yaml:"ltp"`
	Open                      float64 `json:"open,omitempty" yaml:"open"`
	High                      float64 `json:"high,omitempty" yaml:"high"`
	Low                       float64 `json:"low,omitempty" yaml:"low"`
	Close                     float64 `json:"close,omitempty" yaml:"close"`
	Volume                    int64   `json:"volume,omitempty" yaml:"volume"`
	OpenInterest              int64   `json:"open_interest,omitempty" yaml:"open_interest"`
	DayChangePct              float64 `json:"day_change_pct,omitempty" yaml:"day_change_pct"`
	Turnover                  float64 `json:"turnover,omitempty" yaml:"turnover"`
	FnoEligible               bool    `json:"fno_eligible,omitempty" yaml:"fno_eligible"`
	HighConviction            bool    `json:"high_conviction,omitempty" yaml:"high_conviction"`
	MeetsGainerCriteria       bool    `json:"meets_gainer_criteria,omitempty" yaml:"meets_gainer_criteria"`
	MeetsVolumeLeaderCriteria bool    `json:"meets_volume_leader_criteria,omitempty" yaml:"meets_volume_leader_criteria"`
}

// WithBar returns a copy of the candidate carrying the bar's OHLCV fields.
func (c Candidate) WithBar(bar Candle) Candidate {
	c.Open = bar.Open
	c.High = bar.High
	c.Low = bar.Low
	c.Close = bar.Close
	c.Volume = bar.Volume
	c.OpenInterest = bar.OpenInterest
	return c
}
