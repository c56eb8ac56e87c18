package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/config"
	"github.com/abhishekslab/growwbot/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Dir = dir
	cfg.Database.Path = filepath.Join(dir, "growwbot.db")
	cfg.Broker.Provider = "replay"
	cfg.Broker.ReplayDir = filepath.Join(dir, "replay")
	if err := os.MkdirAll(cfg.Broker.ReplayDir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCmd(cfg, zerolog.Nop())
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersion_JSON(t *testing.T) {
	out, err := execute(t, testConfig(t), "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q, want %q", v["version"], Version)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(t)
	out, err := execute(t, cfg, "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "valid") {
		t.Errorf("output = %q", out)
	}

	cfg.Backtest.TiePolicy = "optimistic"
	if _, err := execute(t, cfg, "config", "validate"); err == nil {
		t.Error("expected an error for an unknown tie policy")
	}
}

func TestConfigShow_MasksCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Credentials.Kite.APIKey = "abcdef123456"
	out, err := execute(t, cfg, "config", "show", "--json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if strings.Contains(out, "abcdef123456") {
		t.Error("API key printed in clear")
	}
	if cfg.Credentials.Kite.APIKey != "abcdef123456" {
		t.Error("masking modified the live config")
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":         "",
		"abc":      "***",
		"abcdefgh": "ab****gh",
	}
	for in, want := range cases {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBacktestHistory_Empty(t *testing.T) {
	out, err := execute(t, testConfig(t), "backtest", "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []json.RawMessage
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, want 0", len(runs))
	}
}

func TestTradeAdd_RejectsBadLevels(t *testing.T) {
	_, err := execute(t, testConfig(t), "trade", "add",
		"--symbol", "NSE-RELIANCE", "--entry", "100", "--sl", "101", "--target", "110", "--qty", "10")
	if err == nil {
		t.Fatal("expected an error for a stop-loss above entry")
	}
}

func TestTradeLifecycle_MonitorClosesAtTarget(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "trade", "add", "--json",
		"--symbol", "NSE-RELIANCE", "--entry", "100", "--sl", "95", "--target", "110", "--qty", "100")
	if err != nil {
		t.Fatalf("trade add: %v", err)
	}
	var added models.Trade
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !added.IsPaper || added.OrderStatus != models.OrderSimulated {
		t.Errorf("trade = %+v, want a simulated paper trade", added)
	}

	ltp := filepath.Join(cfg.Broker.ReplayDir, "ltp.json")
	if err := os.WriteFile(ltp, []byte(`{"NSE-RELIANCE": 112.5}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, cfg, "monitor", "--once"); err != nil {
		t.Fatalf("monitor: %v", err)
	}

	out, err = execute(t, cfg, "trade", "list", "--json", "--status", "won")
	if err != nil {
		t.Fatalf("trade list: %v", err)
	}
	var trades []models.Trade
	if err := json.Unmarshal([]byte(out), &trades); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d won trades, want 1", len(trades))
	}
	got := trades[0]
	if got.ExitTrigger != models.ExitTarget || got.ExitPrice == nil || *got.ExitPrice != 112.5 {
		t.Errorf("exit = %v @ %v, want TARGET @ 112.5", got.ExitTrigger, got.ExitPrice)
	}
	if got.ActualPnL == nil || *got.ActualPnL <= 0 {
		t.Errorf("pnl = %v, want positive", got.ActualPnL)
	}
}

func TestVisibleLen_IgnoresANSI(t *testing.T) {
	if n := visibleLen("\x1b[32m+1.00\x1b[0m"); n != 5 {
		t.Errorf("visibleLen = %d, want 5", n)
	}
}
