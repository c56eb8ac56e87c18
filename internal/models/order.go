package models

import "time"

// OrderType represents the pricing type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Order represents a broker order placed for a live trade.
type Order struct {
	ID       string
	Symbol   string
	Exchange Exchange
	Segment  Segment
	Side     OrderSide
	Type     OrderType
	Product  ProductType
	Quantity int
	Price    float64
	Tag      string
	Status   string
	PlacedAt time.Time
}

// ExitOrder builds the market order that flattens a long trade.
func ExitOrder(t Trade) *Order {
	return &Order{
		Symbol:   t.Symbol,
		Exchange: NSE,
		Segment:  SegmentCash,
		Side:     OrderSideSell,
		Type:     OrderTypeMarket,
		Product:  t.TradeType.Product(),
		Quantity: t.Quantity,
		Tag:      t.AlgoID,
	}
}

// EntryOrder builds the market buy that opens a long trade.
func EntryOrder(t Trade) *Order {
	o := ExitOrder(t)
	o.Side = OrderSideBuy
	return o
}
