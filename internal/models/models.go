// Package models provides domain models for the trading bot.
package models

import (
	"time"

	"github.com/abhishekslab/growwbot/pkg/utils"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
)

// Segment represents the market segment of an instrument.
type Segment string

const (
	SegmentCash Segment = "CASH"
	SegmentFNO  Segment = "FNO"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// TradeType selects the fee schedule and product for a position.
type TradeType string

const (
	TradeTypeIntraday TradeType = "INTRADAY"
	TradeTypeDelivery TradeType = "DELIVERY"
)

// ProductType represents the broker product type of an order.
type ProductType string

const (
	ProductMIS ProductType = "MIS" // Intraday
	ProductCNC ProductType = "CNC" // Delivery
)

// Product returns the broker product matching the trade type.
func (t TradeType) Product() ProductType {
	if t == TradeTypeDelivery {
		return ProductCNC
	}
	return ProductMIS
}

// Candle represents one OHLCV bar. Time is unix seconds.
type Candle struct {
	Time         int64   `json:"time"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
}

// Valid reports whether the candle can be cached and simulated.
func (c Candle) Valid() bool {
	return c.Open > 0 && c.Close > 0
}

// Timestamp returns the bar time in UTC.
func (c Candle) Timestamp() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

// Date returns the IST calendar date of the bar as YYYY-MM-DD. Daily bars
// are stamped at IST midnight, which is the previous day in UTC.
func (c Candle) Date() string {
	return time.Unix(c.Time, 0).In(utils.IndiaLocation).Format(DateLayout)
}

// DateLayout is the calendar date format used across the bot.
const DateLayout = "2006-01-02"

// Quote represents a last traded price observation.
type Quote struct {
	Symbol    string
	LTP       float64
	Timestamp time.Time
}
