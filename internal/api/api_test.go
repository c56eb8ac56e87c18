package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/backtest"
	"github.com/abhishekslab/growwbot/internal/candlecache"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/resilience"
	"github.com/abhishekslab/growwbot/internal/store"
	"github.com/abhishekslab/growwbot/internal/strategy"
)

const testAlgo = "buy_once"

var fixedNow = func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }

type flatSource struct{ bars int }

func (f flatSource) GetCandles(ctx context.Context, req candlecache.Request) ([]models.Candle, error) {
	day, _ := time.Parse(models.DateLayout, req.StartDate)
	start := day.Add(3*time.Hour + 45*time.Minute).Unix()
	out := make([]models.Candle, f.bars)
	for i := range out {
		out[i] = models.Candle{Time: start + int64(i)*300, Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000}
	}
	return out, nil
}

// buyOnce buys on its first evaluation with a target inside the next bar.
type buyOnce struct{ done bool }

func (b *buyOnce) ID() string                             { return testAlgo }
func (b *buyOnce) SetRuntimeParams(capital, risk float64) {}
func (b *buyOnce) Evaluate(symbol string, history []models.Candle, ltp float64, info models.Candidate) (*models.AlgoSignal, error) {
	if b.done {
		return nil, nil
	}
	b.done = true
	return &models.AlgoSignal{
		AlgoID: testAlgo, Action: models.ActionBuy,
		EntryPrice: ltp, StopLoss: ltp - 5, Target: ltp + 0.25, Quantity: 10,
	}, nil
}

type fakeCache struct {
	cleared []string
}

func (f *fakeCache) Stats(ctx context.Context) (*store.CacheStats, error) {
	return &store.CacheStats{TotalEntries: 12, SizeBytes: 4096, OldestDate: "2025-01-06", NewestDate: "2025-01-10"}, nil
}

func (f *fakeCache) Clear(ctx context.Context, symbol string) (int64, error) {
	f.cleared = append(f.cleared, symbol)
	return 3, nil
}

type testServer struct {
	*httptest.Server
	store *store.SQLiteStore
	cache *fakeCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	registry := strategy.NewRegistry()
	registry.Register(strategy.Info{ID: testAlgo, Name: "Buy once"}, func() strategy.Evaluator { return &buyOnce{} })

	logger := zerolog.Nop()
	cache := &fakeCache{}
	server := NewServer(Deps{
		Backtest:  backtest.NewEngine(flatSource{bars: 40}, registry, backtest.WithClock(fixedNow), backtest.WithLogger(logger)),
		Recorder:  backtest.NewRecorder(st, logger),
		Runs:      st,
		Snapshots: st,
		Cache:     cache,
		Registry:  registry,
		Workers:   2,
		Logger:    logger,
	})

	httpServer := httptest.NewServer(server.Router)
	t.Cleanup(func() {
		httpServer.Close()
		st.Close()
	})
	return &testServer{Server: httpServer, store: st, cache: cache}
}

func doJSONRequest(t *testing.T, method, url string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

// readEvents posts a run request and parses the SSE frames.
func readEvents(t *testing.T, url string, payload any) (*http.Response, []map[string]any) {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var events []map[string]any
	for _, frame := range strings.Split(raw.String(), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("malformed frame %q", frame)
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		events = append(events, ev)
	}
	return resp, events
}

func runRequest() map[string]any {
	return map[string]any{
		"algo_id":      testAlgo,
		"groww_symbol": "NSE-RELIANCE",
		"start_date":   "2025-01-06",
		"end_date":     "2025-01-06",
	}
}

func TestRunBacktest_StreamsAndSaves(t *testing.T) {
	srv := newTestServer(t)

	resp, events := readEvents(t, srv.URL+"/api/backtest/run", runRequest())
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if resp.Header.Get("Cache-Control") != "no-cache" || resp.Header.Get("X-Accel-Buffering") != "no" {
		t.Errorf("missing streaming headers: %v", resp.Header)
	}
	if len(events) == 0 {
		t.Fatal("no events streamed")
	}

	var trades int
	for _, ev := range events {
		if ev["event_type"] == "trade" {
			trades++
		}
	}
	if trades != 1 {
		t.Errorf("trade events = %d, want 1", trades)
	}
	last := events[len(events)-1]
	if last["event_type"] != "complete" {
		t.Fatalf("last event = %v", last["event_type"])
	}

	var runs []store.RunSummary
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/backtest/history", nil, &runs); code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	if len(runs) != 1 || runs[0].Symbol != "NSE-RELIANCE" || runs[0].AlgoID != testAlgo {
		t.Fatalf("history = %+v", runs)
	}
	if runs[0].Metrics == nil || runs[0].Metrics.TradeCount != 1 {
		t.Errorf("saved metrics = %+v", runs[0].Metrics)
	}

	var run models.BacktestRun
	url := fmt.Sprintf("%s/api/backtest/%d", srv.URL, runs[0].ID)
	if code := doJSONRequest(t, http.MethodGet, url, nil, &run); code != http.StatusOK {
		t.Fatalf("show status = %d", code)
	}
	if len(run.Trades) != 1 || len(run.EquityCurve) != 40 {
		t.Errorf("run detail trades=%d curve=%d", len(run.Trades), len(run.EquityCurve))
	}
}

func TestRunBacktest_ErrorEventIsNotSaved(t *testing.T) {
	srv := newTestServer(t)
	req := runRequest()
	req["algo_id"] = "unknown"

	_, events := readEvents(t, srv.URL+"/api/backtest/run", req)
	if len(events) != 1 || events[0]["event_type"] != "error" {
		t.Fatalf("events = %v", events)
	}
	if events[0]["error"] != "Strategy not found: unknown" {
		t.Errorf("error = %v", events[0]["error"])
	}

	runs, err := srv.store.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("failed run was saved: %+v", runs)
	}
}

func TestRunBacktest_RejectsBadBody(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name    string
		payload any
	}{
		{"missing symbol", map[string]any{"algo_id": testAlgo, "start_date": "2025-01-06", "end_date": "2025-01-06"}},
		{"wrong type", map[string]any{"algo_id": testAlgo, "initial_capital": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			if code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/backtest/run", tt.payload, &body); code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
		})
	}
}

func TestDailyPicks_NotConfigured(t *testing.T) {
	srv := newTestServer(t)
	payload := map[string]any{"algo_id": testAlgo, "start_date": "2025-01-06", "end_date": "2025-01-06"}
	if code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/backtest/daily-picks", payload, nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

func TestRunEndpoints_NotFoundAndDelete(t *testing.T) {
	srv := newTestServer(t)

	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/backtest/999", nil, nil); code != http.StatusNotFound {
		t.Errorf("missing run status = %d", code)
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/backtest/abc", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", code)
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/backtest/history?limit=0", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", code)
	}

	id, err := srv.store.SaveRun(context.Background(), &models.BacktestRun{
		AlgoID: testAlgo, Symbol: "NSE-TCS", Interval: "5minute", StartDate: "2025-01-06", EndDate: "2025-01-06",
	})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	url := fmt.Sprintf("%s/api/backtest/%d", srv.URL, id)
	if code := doJSONRequest(t, http.MethodDelete, url, nil, nil); code != http.StatusOK {
		t.Errorf("delete status = %d", code)
	}
	if code := doJSONRequest(t, http.MethodDelete, url, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete status = %d", code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var stats store.CacheStats
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/backtest/cache/status", nil, &stats); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if stats.TotalEntries != 12 || stats.NewestDate != "2025-01-10" {
		t.Errorf("stats = %+v", stats)
	}

	var cleared map[string]int64
	if code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/backtest/cache/clear?groww_symbol=NSE-INFY", nil, &cleared); code != http.StatusOK {
		t.Fatalf("clear status = %d", code)
	}
	if cleared["deleted"] != 3 || len(srv.cache.cleared) != 1 || srv.cache.cleared[0] != "NSE-INFY" {
		t.Errorf("clear = %v, calls %v", cleared, srv.cache.cleared)
	}

	ctx := context.Background()
	for _, date := range []string{"2025-01-06", "2025-01-07"} {
		if err := srv.store.SaveSnapshot(ctx, date, []byte(`{"candidates":[]}`)); err != nil {
			t.Fatal(err)
		}
	}
	if code := doJSONRequest(t, http.MethodDelete, srv.URL+"/api/backtest/cache-daily-picks", nil, &cleared); code != http.StatusOK {
		t.Fatalf("snapshot clear status = %d", code)
	}
	if cleared["deleted"] != 2 {
		t.Errorf("snapshots deleted = %d, want 2", cleared["deleted"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
}

func TestListAlgos(t *testing.T) {
	srv := newTestServer(t)
	var algos []strategy.Info
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/api/algos", nil, &algos); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(algos) != 1 || algos[0].ID != testAlgo {
		t.Errorf("algos = %+v", algos)
	}
}

type fakeBreakers struct {
	stats  []resilience.Snapshot
	resets int
}

func (f *fakeBreakers) Stats() []resilience.Snapshot { return f.stats }
func (f *fakeBreakers) Reset()                       { f.resets++ }

func TestHealth_ReportsBreakers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fb := &fakeBreakers{stats: []resilience.Snapshot{
		{Name: "historical", State: resilience.StateClosed, Calls: 4, Failures: 1},
		{Name: "quotes", State: resilience.StateOpen},
	}}
	srv := httptest.NewServer(NewServer(Deps{Breakers: fb, Logger: zerolog.Nop()}).Router)
	defer srv.Close()

	var body struct {
		Status   string `json:"status"`
		Breakers []struct {
			Name           string  `json:"name"`
			State          string  `json:"state"`
			FailureRatePct float64 `json:"failure_rate_pct"`
		} `json:"breakers"`
	}
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/health", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Status != "degraded" || len(body.Breakers) != 2 {
		t.Fatalf("health = %+v", body)
	}
	if body.Breakers[0].FailureRatePct != 25 {
		t.Errorf("failure rate = %v, want 25", body.Breakers[0].FailureRatePct)
	}

	var reset map[string]bool
	if code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/breakers/reset", nil, &reset); code != http.StatusOK || !reset["reset"] {
		t.Errorf("reset = %d %v", code, reset)
	}
	if fb.resets != 1 {
		t.Errorf("resets = %d, want 1", fb.resets)
	}
}

func TestHealth_WithoutBroker(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]any
	if code := doJSONRequest(t, http.MethodGet, srv.URL+"/health", nil, &body); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}
	if _, ok := body["breakers"]; ok {
		t.Error("breakers reported without a broker")
	}
	switch body["market"] {
	case "OPEN", "CLOSED", "PRE_OPEN", "SQUARE_OFF":
	default:
		t.Errorf("market = %v", body["market"])
	}
	if code := doJSONRequest(t, http.MethodPost, srv.URL+"/api/breakers/reset", nil, nil); code != http.StatusServiceUnavailable {
		t.Errorf("reset status = %d, want 503", code)
	}
}
