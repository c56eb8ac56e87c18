package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/models"
)

const requestTimeLayout = "2006-01-02 15:04:05"

// KiteBroker implements Broker on Zerodha Kite Connect.
type KiteBroker struct {
	client        *kiteconnect.Client
	authenticated bool
	logger        zerolog.Logger

	mu          sync.RWMutex
	instruments map[string]int
	loc         *time.Location
}

// KiteConfig holds configuration for the Kite adapter.
type KiteConfig struct {
	APIKey      string
	AccessToken string
	Logger      zerolog.Logger
}

// NewKiteBroker creates a Kite Connect adapter. A missing access token leaves
// the adapter unauthenticated; every call then fails with ErrNotAuthenticated.
func NewKiteBroker(cfg KiteConfig) *KiteBroker {
	client := kiteconnect.New(cfg.APIKey)
	if cfg.AccessToken != "" {
		client.SetAccessToken(cfg.AccessToken)
	}

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*60*60+30*60)
	}

	return &KiteBroker{
		client:        client,
		authenticated: cfg.APIKey != "" && cfg.AccessToken != "",
		logger:        cfg.Logger.With().Str("broker", "kite").Logger(),
		instruments:   make(map[string]int),
		loc:           loc,
	}
}

// IsAuthenticated returns whether credentials were supplied.
func (k *KiteBroker) IsAuthenticated() bool {
	return k.authenticated
}

// HistoricalCandles fetches candles and returns them as positional rows
// [unix_seconds, open, high, low, close, volume, oi].
func (k *KiteBroker) HistoricalCandles(ctx context.Context, req HistoricalRequest) (any, error) {
	if !k.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	from, err := time.ParseInLocation(requestTimeLayout, req.Start, k.loc)
	if err != nil {
		return nil, apperrors.NewValidationError("start", req.Start, "invalid request time")
	}
	to, err := time.ParseInLocation(requestTimeLayout, req.End, k.loc)
	if err != nil {
		return nil, apperrors.NewValidationError("end", req.End, "invalid request time")
	}

	exchange, symbol := SplitSymbol(req.Symbol, req.Exchange)
	token, err := k.instrumentToken(ctx, exchange, symbol)
	if err != nil {
		return nil, err
	}

	interval := mapInterval(req.Interval)
	data, err := k.client.GetHistoricalData(token, interval, from, to, false, true)
	if err != nil {
		return nil, apperrors.NewBrokerError("HISTORICAL", "failed to get historical data", err)
	}

	rows := make([]any, 0, len(data))
	for _, d := range data {
		rows = append(rows, []any{
			float64(d.Date.Time.Unix()),
			d.Open,
			d.High,
			d.Low,
			d.Close,
			float64(d.Volume),
			float64(d.OI),
		})
	}

	k.logger.Debug().
		Str("symbol", req.Symbol).
		Str("interval", interval).
		Int("rows", len(rows)).
		Msg("historical candles fetched")

	return map[string]any{"candles": rows}, nil
}

// LTP fetches last traded prices for symbols such as "NSE-RELIANCE".
func (k *KiteBroker) LTP(ctx context.Context, symbols []string) (map[string]float64, error) {
	if !k.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	keys := make([]string, len(symbols))
	back := make(map[string]string, len(symbols))
	for i, s := range symbols {
		exchange, ts := SplitSymbol(s, string(models.NSE))
		keys[i] = exchange + ":" + ts
		back[keys[i]] = s
	}

	quotes, err := k.client.GetLTP(keys...)
	if err != nil {
		return nil, apperrors.NewBrokerError("LTP", "failed to get ltp", err)
	}

	out := make(map[string]float64, len(quotes))
	for key, q := range quotes {
		if sym, ok := back[key]; ok && q.LastPrice > 0 {
			out[sym] = q.LastPrice
		}
	}
	return out, nil
}

// PlaceOrder places a regular order.
func (k *KiteBroker) PlaceOrder(ctx context.Context, order *models.Order) (*OrderResult, error) {
	if !k.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	exchange, symbol := SplitSymbol(order.Symbol, string(order.Exchange))
	params := kiteconnect.OrderParams{
		Exchange:        exchange,
		Tradingsymbol:   symbol,
		TransactionType: string(order.Side),
		OrderType:       string(order.Type),
		Product:         string(order.Product),
		Quantity:        order.Quantity,
		Validity:        "DAY",
		Tag:             truncateTag(order.Tag),
	}
	if order.Type == models.OrderTypeLimit {
		params.Price = order.Price
	}

	resp, err := k.client.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return nil, apperrors.NewOrderError("", order.Symbol, "place", "broker rejected order", err)
	}

	k.logger.Info().
		Str("order_id", resp.OrderID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Int("quantity", order.Quantity).
		Msg("order placed")

	return &OrderResult{
		OrderID: resp.OrderID,
		Status:  string(models.OrderPlaced),
		Message: "Order placed successfully",
	}, nil
}

// OrderStatus returns the latest status from the order's history.
func (k *KiteBroker) OrderStatus(ctx context.Context, orderID string) (string, error) {
	if !k.IsAuthenticated() {
		return "", apperrors.ErrNotAuthenticated
	}

	history, err := k.client.GetOrderHistory(orderID)
	if err != nil {
		return "", apperrors.NewOrderError(orderID, "", "status", "failed to get order history", err)
	}
	if len(history) == 0 {
		return "", apperrors.NewOrderError(orderID, "", "status", "empty order history", nil)
	}
	return strings.ToUpper(history[len(history)-1].Status), nil
}

func (k *KiteBroker) instrumentToken(ctx context.Context, exchange, symbol string) (int, error) {
	key := fmt.Sprintf("%s:%s", exchange, symbol)

	k.mu.RLock()
	token, ok := k.instruments[key]
	k.mu.RUnlock()
	if ok {
		return token, nil
	}

	instruments, err := k.client.GetInstrumentsByExchange(exchange)
	if err != nil {
		return 0, apperrors.NewBrokerError("INSTRUMENTS", "failed to get instruments", err)
	}

	k.mu.Lock()
	for _, inst := range instruments {
		k.instruments[fmt.Sprintf("%s:%s", inst.Exchange, inst.Tradingsymbol)] = inst.InstrumentToken
	}
	token, ok = k.instruments[key]
	k.mu.Unlock()

	if !ok {
		return 0, apperrors.NewDataError("instrument", symbol, "instrument not found", apperrors.ErrDataNotFound)
	}
	return token, nil
}

// mapInterval converts cache interval names to Kite intervals.
func mapInterval(interval string) string {
	switch strings.ReplaceAll(strings.ToLower(interval), " ", "") {
	case "1minute", "1min", "minute":
		return "minute"
	case "3minute", "3min":
		return "3minute"
	case "5minute", "5min":
		return "5minute"
	case "10minute", "10min":
		return "10minute"
	case "15minute", "15min":
		return "15minute"
	case "30minute", "30min":
		return "30minute"
	case "1hour", "60minute":
		return "60minute"
	case "1day", "day":
		return "day"
	default:
		return interval
	}
}

// Kite limits order tags to 20 characters.
func truncateTag(tag string) string {
	if len(tag) > 20 {
		return tag[:20]
	}
	return tag
}
