// Package broker provides market data and order capabilities backed by a
// broker API or by offline replay files.
package broker

import (
	"context"
	"strings"

	"github.com/abhishekslab/growwbot/internal/models"
)

// HistoricalSource returns raw historical candle payloads. The payload is a
// decoded JSON-like value (map or list) understood by candlecache.ParseResponse.
type HistoricalSource interface {
	HistoricalCandles(ctx context.Context, req HistoricalRequest) (any, error)
}

// QuoteSource returns last traded prices keyed by the requested symbol.
type QuoteSource interface {
	LTP(ctx context.Context, symbols []string) (map[string]float64, error)
}

// OrderPlacer places orders.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error)
}

// OrderStatusSource reports the latest broker status of an order.
type OrderStatusSource interface {
	OrderStatus(ctx context.Context, orderID string) (string, error)
}

// Broker is the full capability set used by the live monitor.
type Broker interface {
	HistoricalSource
	QuoteSource
	OrderPlacer
	OrderStatusSource
}

// HistoricalRequest represents a request for historical data.
// Start and End use the "2006-01-02 15:04:05" layout in exchange time.
type HistoricalRequest struct {
	Exchange string
	Segment  string
	Symbol   string
	Interval string
	Start    string
	End      string
}

// OrderResult represents the result of an order placement.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Broker order states that end an order without a fill.
const (
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
	StatusComplete  = "COMPLETE"
)

// IsTerminalFailure reports whether a broker order status means the order will never fill.
func IsTerminalFailure(status string) bool {
	s := strings.ToUpper(status)
	return s == StatusRejected || s == StatusCancelled
}

// SplitSymbol splits "NSE-RELIANCE" into exchange and trading symbol.
// Symbols without a prefix default to defaultExchange.
func SplitSymbol(symbol, defaultExchange string) (exchange, tradingSymbol string) {
	if i := strings.Index(symbol, "-"); i > 0 {
		prefix := strings.ToUpper(symbol[:i])
		if prefix == string(models.NSE) || prefix == string(models.BSE) {
			return prefix, symbol[i+1:]
		}
	}
	if defaultExchange == "" {
		defaultExchange = string(models.NSE)
	}
	return defaultExchange, symbol
}
