package broker

import (
	"context"

	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/resilience"
)

// Guarded wraps a Broker so each capability trips its own circuit breaker.
type Guarded struct {
	inner    Broker
	breakers *resilience.Registry
}

// NewGuarded wraps inner with breakers from registry.
func NewGuarded(inner Broker, breakers *resilience.Registry) *Guarded {
	return &Guarded{inner: inner, breakers: breakers}
}

// HistoricalCandles implements HistoricalSource.
func (g *Guarded) HistoricalCandles(ctx context.Context, req HistoricalRequest) (any, error) {
	return resilience.Call(ctx, g.breakers.For(resilience.Historical),
		func(ctx context.Context) (any, error) {
			return g.inner.HistoricalCandles(ctx, req)
		})
}

// LTP implements QuoteSource.
func (g *Guarded) LTP(ctx context.Context, symbols []string) (map[string]float64, error) {
	return resilience.Call(ctx, g.breakers.For(resilience.Quotes),
		func(ctx context.Context) (map[string]float64, error) {
			return g.inner.LTP(ctx, symbols)
		})
}

// PlaceOrder implements OrderPlacer.
func (g *Guarded) PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error) {
	return resilience.Call(ctx, g.breakers.For(resilience.Orders),
		func(ctx context.Context) (*OrderResult, error) {
			return g.inner.PlaceOrder(ctx, order)
		})
}

// OrderStatus implements OrderStatusSource.
func (g *Guarded) OrderStatus(ctx context.Context, orderID string) (string, error) {
	return resilience.Call(ctx, g.breakers.For(resilience.Orders),
		func(ctx context.Context) (string, error) {
			return g.inner.OrderStatus(ctx, orderID)
		})
}

// Stats exposes breaker state for status endpoints.
func (g *Guarded) Stats() []resilience.Snapshot {
	return g.breakers.Snapshots()
}

// Reset closes every breaker.
func (g *Guarded) Reset() {
	g.breakers.ResetAll()
}
