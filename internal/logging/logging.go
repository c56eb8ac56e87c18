// Package logging builds the growwbot logger and carries it through contexts.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where log lines go.
type Options struct {
	Level string
	// FilePath enables a rotated JSON log file when set.
	FilePath string
	// Console receives human-readable lines. Nil means stderr, which keeps
	// --json output on stdout parseable.
	Console io.Writer
	// Quiet drops the console writer.
	Quiet bool
}

// New builds the process logger and sets the global level.
func New(opts Options) zerolog.Logger {
	var writers []io.Writer
	if !opts.Quiet {
		out := opts.Console
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    50, // MB
				MaxBackups: 5,
				MaxAge:     14, // days
				Compress:   true,
			})
		}
	}

	var w io.Writer = io.Discard
	if len(writers) == 1 {
		w = writers[0]
	} else if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
	return zerolog.New(w).With().Timestamp().Str("app", "growwbot").Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or a disabled one.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithRequestID stores id in ctx and tags the context logger with it.
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, id)
	return WithLogger(ctx, FromContext(ctx).With().Str("request_id", id).Logger())
}

// RequestID returns the request ID in ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// Order records an order sent to the broker.
func Order(logger zerolog.Logger, side, symbol string, qty int, price float64, orderID string) {
	logger.Info().
		Str("event", "order").
		Str("side", side).
		Str("symbol", symbol).
		Int("quantity", qty).
		Float64("price", price).
		Str("order_id", orderID).
		Msg("order placed")
}

// Exit records a closed trade with its net P&L.
func Exit(logger zerolog.Logger, symbol, trigger string, price, pnl float64) {
	logger.Info().
		Str("event", "exit").
		Str("symbol", symbol).
		Str("trigger", trigger).
		Float64("price", price).
		Float64("pnl", pnl).
		Msg("trade closed")
}

// BrokerCall records the latency of one broker request at debug level.
func BrokerCall(logger zerolog.Logger, op, target string, took time.Duration, err error) {
	ev := logger.Debug().Str("event", "broker_call").Str("op", op).Str("target", target).Dur("took", took)
	if err != nil {
		ev.Err(err).Msg("broker call failed")
		return
	}
	ev.Msg("broker call ok")
}
