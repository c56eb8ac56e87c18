package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/models"
)

// ReplayBroker serves recorded candle files and simulates order fills.
// Files are looked up as <dir>/<interval>/<symbol>.json, then <dir>/<symbol>.json.
// LTPs come from <dir>/ltp.json when present, else from the last recorded close.
type ReplayBroker struct {
	dir string

	mu     sync.RWMutex
	orders map[string]*models.Order
}

// NewReplayBroker creates a replay broker rooted at dir.
func NewReplayBroker(dir string) *ReplayBroker {
	return &ReplayBroker{
		dir:    dir,
		orders: make(map[string]*models.Order),
	}
}

// HistoricalCandles returns the decoded contents of the symbol's replay file.
func (r *ReplayBroker) HistoricalCandles(ctx context.Context, req HistoricalRequest) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := r.locate(req.Symbol, req.Interval)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDataError("replay", req.Symbol, "failed to read replay file", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewDataError("replay", req.Symbol, "invalid replay file", err)
	}
	return raw, nil
}

// LTP returns replayed last traded prices.
func (r *ReplayBroker) LTP(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))

	overrides := map[string]float64{}
	if data, err := os.ReadFile(filepath.Join(r.dir, "ltp.json")); err == nil {
		if err := json.Unmarshal(data, &overrides); err != nil {
			return nil, apperrors.NewDataError("replay", "ltp.json", "invalid ltp file", err)
		}
	}

	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if v, ok := overrides[s]; ok {
			out[s] = v
			continue
		}
		if v, ok := r.lastClose(s); ok {
			out[s] = v
		}
	}
	return out, nil
}

// PlaceOrder records a simulated fill.
func (r *ReplayBroker) PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error) {
	if order.Quantity <= 0 {
		return nil, apperrors.NewOrderError("", order.Symbol, "place", "quantity must be positive", apperrors.ErrInvalidOrder)
	}

	id := "REPLAY-" + uuid.NewString()
	placed := *order
	placed.ID = id
	placed.Status = StatusComplete
	placed.PlacedAt = time.Now()

	r.mu.Lock()
	r.orders[id] = &placed
	r.mu.Unlock()

	return &OrderResult{
		OrderID: id,
		Status:  string(models.OrderPlaced),
		Message: "Replay order filled",
	}, nil
}

// OrderStatus returns the status of a simulated order.
func (r *ReplayBroker) OrderStatus(ctx context.Context, orderID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return "", apperrors.NewOrderError(orderID, "", "status", "unknown order", apperrors.ErrDataNotFound)
	}
	return o.Status, nil
}

// Orders returns the simulated orders placed so far.
func (r *ReplayBroker) Orders() []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out
}

func (r *ReplayBroker) locate(symbol, interval string) (string, error) {
	name := fileName(symbol) + ".json"
	candidates := []string{filepath.Join(r.dir, name)}
	if interval != "" {
		candidates = append([]string{filepath.Join(r.dir, interval, name)}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", apperrors.NewDataError("replay", symbol, fmt.Sprintf("no replay file in %s", r.dir), apperrors.ErrDataNotFound)
}

func (r *ReplayBroker) lastClose(symbol string) (float64, bool) {
	path, err := r.locate(symbol, "")
	if err != nil {
		return 0, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	var rows []json.RawMessage
	var wrapped struct {
		Candles []json.RawMessage `json:"candles"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return 0, false
		}
		rows = wrapped.Candles
		if len(rows) == 0 {
			rows = wrapped.Data
		}
	}
	if len(rows) == 0 {
		return 0, false
	}

	last := rows[len(rows)-1]
	var tuple []any
	if err := json.Unmarshal(last, &tuple); err == nil && len(tuple) >= 5 {
		c, ok := tuple[4].(float64)
		return c, ok && c > 0
	}
	var obj struct {
		Close float64 `json:"close"`
	}
	if err := json.Unmarshal(last, &obj); err == nil && obj.Close > 0 {
		return obj.Close, true
	}
	return 0, false
}

// fileName keeps symbols safe as file names.
func fileName(symbol string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "-").Replace(symbol)
}
