package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"broker", NewBrokerError("503", "quote service down", nil), true},
		{"wrapped data", fmt.Errorf("fill: %w", NewDataError("candles", "NSE-TCS", "bad payload", nil)), true},
		{"circuit open", ErrCircuitOpen, true},
		{"validation", NewValidationError("start", "x", "invalid request time"), false},
		{"strategy", NewStrategyError("momentum_scalp", "NSE-TCS", errors.New("nan")), false},
		{"auth", fmt.Errorf("%w: missing token", ErrNotAuthenticated), false},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Errorf("%s: IsRetryable = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	err := NewOrderError("", "NSE-INFY", "place", "quantity must be positive", ErrInvalidOrder)
	if !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("%v should wrap ErrInvalidOrder", err)
	}
	want := "place NSE-INFY: quantity must be positive: invalid order"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = NewOrderError("EXIT-1", "NSE-INFY", "exit", "rejected", nil)
	if got := err.Error(); got != "exit NSE-INFY (order EXIT-1): rejected" {
		t.Errorf("Error() = %q", got)
	}

	var se *StrategyError
	if !errors.As(fmt.Errorf("eval: %w", NewStrategyError("a", "b", errors.New("c"))), &se) || se.AlgoID != "a" {
		t.Error("StrategyError not found in chain")
	}
}
