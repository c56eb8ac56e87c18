package utils

import (
	"context"
	"math"
	"time"
)

// RetryPolicy bounds how often and how slowly a call is retried.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Factor   float64
	// RetryIf stops retrying as soon as it returns false.
	RetryIf func(error) bool
}

// RetryWithResult calls fn until it succeeds, attempts run out, RetryIf
// rejects the error or ctx ends.
func RetryWithResult[T any](ctx context.Context, p RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	delay := p.Delay
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= p.Attempts || (p.RetryIf != nil && !p.RetryIf(err)) {
			return zero, err
		}
		if err := Sleep(ctx, delay); err != nil {
			return zero, err
		}
		if p.Factor > 0 {
			delay = time.Duration(float64(delay) * p.Factor)
		}
		if p.MaxDelay > 0 {
			delay = min(delay, p.MaxDelay)
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CalculateBackoff returns base*factor^attempt capped at max.
func CalculateBackoff(attempt int, base, max time.Duration, factor float64) time.Duration {
	d := float64(base) * math.Pow(factor, float64(attempt))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}
