package candlecache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abhishekslab/growwbot/internal/models"
)

// Timestamps at or above this value are milliseconds.
const msThreshold = 1e12

var ist = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}()

// Naive layouts are interpreted in exchange time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseResponse converts a raw historical payload into candles.
//
// Accepted shapes: an object holding a "candles" or "data" list, or a bare list.
// Rows are objects keyed timestamp|time|date, open, high, low, close, volume,
// open_interest|oi, or positional [time, open, high, low, close, volume, oi?].
// Rows that fail to parse or have a non-positive open or close are dropped.
func ParseResponse(raw any) ([]models.Candle, error) {
	rows, err := rowsOf(raw)
	if err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		c, ok := parseRow(row)
		if !ok || !c.Valid() {
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func rowsOf(raw any) ([]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeJSON(v)
	case json.RawMessage:
		return decodeJSON(v)
	case string:
		return decodeJSON([]byte(v))
	case []any:
		return v, nil
	case [][]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case map[string]any:
		for _, key := range []string{"candles", "data"} {
			if inner, ok := v[key]; ok {
				return rowsOf(inner)
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported candle payload type %T", raw)
	}
}

func decodeJSON(data []byte) ([]any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid candle payload: %w", err)
	}
	return rowsOf(v)
}

func parseRow(row any) (models.Candle, bool) {
	switch r := row.(type) {
	case map[string]any:
		return parseObject(r)
	case []any:
		return parseTuple(r)
	}
	return models.Candle{}, false
}

func parseObject(r map[string]any) (models.Candle, bool) {
	var tsRaw any
	for _, key := range []string{"timestamp", "time", "date"} {
		if v, ok := r[key]; ok {
			tsRaw = v
			break
		}
	}
	ts, ok := parseTimestamp(tsRaw)
	if !ok {
		return models.Candle{}, false
	}

	c := models.Candle{Time: ts}
	fields := []struct {
		key string
		dst *float64
	}{
		{"open", &c.Open}, {"high", &c.High}, {"low", &c.Low}, {"close", &c.Close},
	}
	for _, f := range fields {
		v, ok := toFloat(r[f.key])
		if !ok {
			return models.Candle{}, false
		}
		*f.dst = v
	}

	if v, ok := toFloat(r["volume"]); ok {
		c.Volume = int64(v)
	}
	oi, ok := r["open_interest"]
	if !ok {
		oi = r["oi"]
	}
	if v, ok := toFloat(oi); ok {
		c.OpenInterest = int64(v)
	}
	return c, true
}

func parseTuple(r []any) (models.Candle, bool) {
	if len(r) < 5 {
		return models.Candle{}, false
	}
	ts, ok := parseTimestamp(r[0])
	if !ok {
		return models.Candle{}, false
	}

	var vals [4]float64
	for i := range vals {
		v, ok := toFloat(r[i+1])
		if !ok {
			return models.Candle{}, false
		}
		vals[i] = v
	}

	c := models.Candle{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
	if len(r) > 5 {
		if v, ok := toFloat(r[5]); ok {
			c.Volume = int64(v)
		}
	}
	if len(r) > 6 {
		if v, ok := toFloat(r[6]); ok {
			c.OpenInterest = int64(v)
		}
	}
	return c, true
}

// parseTimestamp returns unix seconds.
func parseTimestamp(v any) (int64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return numericTimestamp(n), true
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Unix(), true
		}
		for _, layout := range naiveLayouts {
			if t, err := time.ParseInLocation(layout, s, ist); err == nil {
				return t.Unix(), true
			}
		}
		return 0, false
	}

	n, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return numericTimestamp(n), true
}

func numericTimestamp(n float64) int64 {
	if n >= msThreshold {
		return int64(n / 1000)
	}
	return int64(n)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
