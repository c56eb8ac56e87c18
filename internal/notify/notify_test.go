package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/abhishekslab/growwbot/internal/config"
	"github.com/abhishekslab/growwbot/internal/models"
)

type captured struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]any
}

func (c *captured) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		c.mu.Lock()
		c.paths = append(c.paths, r.URL.Path)
		c.bodies = append(c.bodies, body)
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func closedTrade() models.Trade {
	exit, pnl := 110.0, 95.5
	return models.Trade{
		ID: 7, Symbol: "NSE-RELIANCE", Quantity: 10, EntryPrice: 100,
		Status: models.TradeWon, ExitTrigger: models.ExitTarget,
		ExitPrice: &exit, ActualPnL: &pnl, IsPaper: true,
	}
}

func TestWebhook_PostsTradeClosed(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	m := NewMulti(LevelAll)
	m.AddChannel(NewWebhook(srv.URL))
	if err := m.TradeClosed(context.Background(), closedTrade()); err != nil {
		t.Fatalf("TradeClosed: %v", err)
	}

	if len(c.bodies) != 1 {
		t.Fatalf("requests = %d, want 1", len(c.bodies))
	}
	body := c.bodies[0]
	if body["type"] != string(TypeTrade) {
		t.Errorf("type = %v", body["type"])
	}
	if !strings.Contains(body["title"].(string), "NSE-RELIANCE") {
		t.Errorf("title = %v", body["title"])
	}
	data := body["data"].(map[string]any)
	if data["pnl"] != 95.5 || data["exit_trigger"] != "TARGET" {
		t.Errorf("data = %v", data)
	}
}

func TestWebhook_ReportsNon2xx(t *testing.T) {
	srv := httptest.NewServer((&captured{}).handler(http.StatusBadGateway))
	defer srv.Close()

	m := NewMulti(LevelAll)
	m.AddChannel(NewWebhook(srv.URL))
	err := m.Error(context.Background(), errors.New("boom"), "exit order")
	if err == nil || !strings.Contains(err.Error(), "webhook") {
		t.Errorf("err = %v, want a webhook failure", err)
	}
}

func TestTelegram_SendsEscapedHTML(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.baseURL = srv.URL
	err := tg.Send(context.Background(), Notification{Type: TypeError, Title: "a<b", Message: "x & y"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if c.paths[0] != "/botTOKEN/sendMessage" {
		t.Errorf("path = %s", c.paths[0])
	}
	body := c.bodies[0]
	if body["chat_id"] != "42" || body["text"] != "<b>a&lt;b</b>\n\nx &amp; y" {
		t.Errorf("body = %v", body)
	}
}

func TestMulti_LevelFilter(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	m := NewMulti(LevelErrorsOnly)
	m.AddChannel(NewWebhook(srv.URL))
	ctx := context.Background()
	if err := m.TradeClosed(ctx, closedTrade()); err != nil {
		t.Fatal(err)
	}
	if err := m.Error(ctx, errors.New("boom"), "exit order"); err != nil {
		t.Fatal(err)
	}
	if len(c.bodies) != 1 || c.bodies[0]["type"] != string(TypeError) {
		t.Errorf("bodies = %v, want only the error", c.bodies)
	}
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(config.NotifyConfig{}, config.TelegramCredentials{}).(Noop); !ok {
		t.Error("no channels configured should give Noop")
	}

	n := FromConfig(
		config.NotifyConfig{WebhookURL: "http://localhost/hook", TelegramChatID: "42"},
		config.TelegramCredentials{BotToken: "TOKEN"},
	)
	m, ok := n.(*Multi)
	if !ok || m.Len() != 2 {
		t.Errorf("notifier = %#v, want two channels", n)
	}

	// A chat without a token is not a usable channel.
	n = FromConfig(config.NotifyConfig{TelegramChatID: "42"}, config.TelegramCredentials{})
	if _, ok := n.(Noop); !ok {
		t.Errorf("notifier = %#v, want Noop", n)
	}
}
