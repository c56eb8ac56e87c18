// Package errors holds the sentinel and typed errors shared across growwbot.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidOrder     = errors.New("invalid order")
	ErrDataNotFound     = errors.New("data not found")
	ErrStrategyNotFound = errors.New("strategy not found")
	ErrRunNotFound      = errors.New("backtest run not found")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
)

// BrokerError is a failure reported by the market-data or order API.
type BrokerError struct {
	Code    string
	Message string
	Err     error
}

func (e *BrokerError) Error() string {
	return withCause(fmt.Sprintf("broker %s: %s", e.Code, e.Message), e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

// NewBrokerError creates a BrokerError.
func NewBrokerError(code, message string, err error) *BrokerError {
	return &BrokerError{Code: code, Message: message, Err: err}
}

// OrderError is a failure placing or tracking one order.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Action, e.Symbol, e.Reason)
	if e.OrderID != "" {
		msg = fmt.Sprintf("%s %s (order %s): %s", e.Action, e.Symbol, e.OrderID, e.Reason)
	}
	return withCause(msg, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

// NewOrderError creates an OrderError.
func NewOrderError(orderID, symbol, action, reason string, err error) *OrderError {
	return &OrderError{OrderID: orderID, Symbol: symbol, Action: action, Reason: reason, Err: err}
}

// ValidationError rejects a request field before any call is made.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// DataError is a candle, snapshot or replay payload that could not be read.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	return withCause(fmt.Sprintf("%s for %s: %s", e.DataType, e.Symbol, e.Message), e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// NewDataError creates a DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{DataType: dataType, Symbol: symbol, Message: message, Err: err}
}

// StrategyError is an evaluator failure. Engines count it as no signal.
type StrategyError struct {
	AlgoID string
	Symbol string
	Err    error
}

func (e *StrategyError) Error() string {
	return withCause(fmt.Sprintf("algo %s on %s", e.AlgoID, e.Symbol), e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// NewStrategyError creates a StrategyError.
func NewStrategyError(algoID, symbol string, err error) *StrategyError {
	return &StrategyError{AlgoID: algoID, Symbol: symbol, Err: err}
}

func withCause(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + ": " + err.Error()
}

// IsRetryable reports whether err is worth retrying on the next cycle: broker
// and data failures are, validation and strategy failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	var se *StrategyError
	if errors.As(err, &ve) || errors.As(err, &se) || errors.Is(err, ErrNotAuthenticated) {
		return false
	}
	return true
}
