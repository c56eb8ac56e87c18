// Package notify announces monitor exits and failures on external channels.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abhishekslab/growwbot/internal/config"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/pkg/utils"
)

// Notifier is what the position monitor reports to.
type Notifier interface {
	TradeClosed(ctx context.Context, trade models.Trade) error
	Error(ctx context.Context, err error, errContext string) error
}

// Channel delivers a single notification.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Notification is a channel-neutral message.
type Notification struct {
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Type classifies a notification.
type Type string

const (
	TypeTrade Type = "trade"
	TypeError Type = "error"
)

// Level filters which notification types are sent.
type Level string

const (
	LevelAll        Level = "all"
	LevelTradesOnly Level = "trades_only"
	LevelErrorsOnly Level = "errors_only"
)

// Multi fans notifications out to every channel.
type Multi struct {
	mu       sync.RWMutex
	channels []Channel
	level    Level
	now      func() time.Time
}

// NewMulti creates a notifier with no channels.
func NewMulti(level Level) *Multi {
	if level == "" {
		level = LevelAll
	}
	return &Multi{level: level, now: time.Now}
}

// FromConfig builds a notifier with every configured channel. It returns
// Noop when none is configured.
func FromConfig(cfg config.NotifyConfig, creds config.TelegramCredentials) Notifier {
	m := NewMulti(Level(cfg.Level))
	if cfg.WebhookURL != "" {
		m.AddChannel(NewWebhook(cfg.WebhookURL))
	}
	if creds.BotToken != "" && cfg.TelegramChatID != "" {
		m.AddChannel(NewTelegram(creds.BotToken, cfg.TelegramChatID))
	}
	if m.Len() == 0 {
		return Noop{}
	}
	return m
}

// AddChannel adds a delivery channel.
func (m *Multi) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// Len returns the number of channels.
func (m *Multi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

func (m *Multi) shouldSend(t Type) bool {
	switch m.level {
	case LevelTradesOnly:
		return t == TypeTrade
	case LevelErrorsOnly:
		return t == TypeError
	default:
		return true
	}
}

// Send delivers n on every channel and joins the failures.
func (m *Multi) Send(ctx context.Context, n Notification) error {
	if !m.shouldSend(n.Type) {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = m.now()
	}

	m.mu.RLock()
	channels := m.channels
	m.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if err := ch.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TradeClosed announces a trade the monitor has just exited.
func (m *Multi) TradeClosed(ctx context.Context, t models.Trade) error {
	var exit, pnl float64
	if t.ExitPrice != nil {
		exit = *t.ExitPrice
	}
	if t.ActualPnL != nil {
		pnl = *t.ActualPnL
	}
	mode := "LIVE"
	if t.IsPaper {
		mode = "PAPER"
	}

	return m.Send(ctx, Notification{
		Type:  TypeTrade,
		Title: fmt.Sprintf("%s %s: %s", t.Status, t.ExitTrigger, t.Symbol),
		Message: fmt.Sprintf(
			"Symbol: %s\nQuantity: %d\nEntry: %s\nExit: %s\nP&L: %s\nMode: %s",
			t.Symbol,
			t.Quantity,
			utils.FormatIndianCurrency(t.EntryPrice),
			utils.FormatIndianCurrency(exit),
			utils.FormatPnL(pnl),
			mode,
		),
		Data: map[string]any{
			"trade_id":     t.ID,
			"symbol":       t.Symbol,
			"status":       t.Status,
			"exit_trigger": t.ExitTrigger,
			"exit_price":   exit,
			"pnl":          pnl,
			"is_paper":     t.IsPaper,
		},
	})
}

// Error announces a failure the monitor could not recover from in one cycle.
func (m *Multi) Error(ctx context.Context, err error, errContext string) error {
	return m.Send(ctx, Notification{
		Type:    TypeError,
		Title:   "growwbot error",
		Message: fmt.Sprintf("%s: %v", errContext, err),
		Data:    map[string]any{"context": errContext, "error": err.Error()},
	})
}

// Noop discards every notification.
type Noop struct{}

func (Noop) TradeClosed(ctx context.Context, t models.Trade) error         { return nil }
func (Noop) Error(ctx context.Context, err error, errContext string) error { return nil }
