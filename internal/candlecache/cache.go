// Package candlecache serves historical candles from a day-granular SQLite
// cache, fetching only the missing days from a broker source.
package candlecache

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/abhishekslab/growwbot/internal/broker"
	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/models"
	"github.com/abhishekslab/growwbot/internal/store"
	"github.com/abhishekslab/growwbot/internal/trading"
)

// Request identifies a candle series over an inclusive date range.
type Request struct {
	Symbol    string `json:"symbol"`
	Exchange  string `json:"exchange"`
	Segment   string `json:"segment"`
	Interval  string `json:"interval"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r Request) key() store.BucketKey {
	return store.BucketKey{Symbol: r.Symbol, Segment: r.Segment, Interval: NormalizeInterval(r.Interval)}
}

// Cache is a read-through candle cache.
type Cache struct {
	store   store.CandleStore
	source  broker.HistoricalSource
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithRateLimit throttles source requests to rps per second. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Cache) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger.With().Str("component", "candlecache").Logger()
	}
}

// New creates a cache over st that fills gaps from src.
func New(st store.CandleStore, src broker.HistoricalSource, opts ...Option) *Cache {
	c := &Cache{
		store:   st,
		source:  src,
		limiter: rate.NewLimiter(rate.Limit(3), 1),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FillResult reports how a range was served.
type FillResult struct {
	Days    int `json:"days"`
	Cached  int `json:"cached"`
	Fetched int `json:"fetched"`
	Chunks  int `json:"chunks"`
	Candles int `json:"candles"`
}

// GetCandles returns the sorted, deduplicated candles for req. Missing days
// are fetched in chunks and persisted, including days with no candles. A
// fetch failure returns an error and no candles.
func (c *Cache) GetCandles(ctx context.Context, req Request) ([]models.Candle, error) {
	candles, _, err := c.fill(ctx, req)
	return candles, err
}

// Warmup fills the cache for req without returning candles.
func (c *Cache) Warmup(ctx context.Context, req Request) (FillResult, error) {
	_, res, err := c.fill(ctx, req)
	return res, err
}

// Stats summarises the cache contents.
func (c *Cache) Stats(ctx context.Context) (*store.CacheStats, error) {
	return c.store.CacheStats(ctx)
}

// Clear removes cached days for symbol, or everything when symbol is empty.
func (c *Cache) Clear(ctx context.Context, symbol string) (int64, error) {
	n, err := c.store.ClearCandles(ctx, symbol)
	if err != nil {
		return 0, err
	}
	c.logger.Info().Str("symbol", symbol).Int64("deleted", n).Msg("candle cache cleared")
	return n, nil
}

func (c *Cache) fill(ctx context.Context, req Request) ([]models.Candle, FillResult, error) {
	var res FillResult

	dates, err := trading.DateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, res, err
	}
	res.Days = len(dates)

	key := req.key()
	cached, err := c.store.GetBuckets(ctx, key, dates)
	if err != nil {
		return nil, res, apperrors.NewDataError("candles", req.Symbol, "cache lookup failed", err)
	}
	res.Cached = len(cached)

	var missing []string
	for _, d := range dates {
		if _, ok := cached[d]; !ok {
			missing = append(missing, d)
		}
	}

	buckets := make(map[string][]models.Candle, len(dates))
	for d, cs := range cached {
		buckets[d] = cs
	}

	chunks := planChunks(missing, MaxDaysForInterval(req.Interval))
	res.Chunks = len(chunks)

	for _, ch := range chunks {
		fetched, err := c.fetchChunk(ctx, req, key, ch)
		if err != nil {
			return nil, res, err
		}
		for d, cs := range fetched {
			buckets[d] = cs
		}
		res.Fetched += len(ch.dates)
	}

	candles := merge(buckets)
	res.Candles = len(candles)

	c.logger.Debug().
		Str("symbol", req.Symbol).
		Str("interval", key.Interval).
		Int("days", res.Days).
		Int("cached", res.Cached).
		Int("fetched", res.Fetched).
		Int("candles", res.Candles).
		Msg("candles served")

	return candles, res, nil
}

// fetchChunk requests one contiguous run of days and persists every day in it.
func (c *Cache) fetchChunk(ctx context.Context, req Request, key store.BucketKey, ch chunk) (map[string][]models.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := c.source.HistoricalCandles(ctx, broker.HistoricalRequest{
		Exchange: req.Exchange,
		Segment:  req.Segment,
		Symbol:   req.Symbol,
		Interval: key.Interval,
		Start:    trading.SessionStart(ch.first()),
		End:      trading.SessionEnd(ch.last()),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewDataError("candles", req.Symbol, "fetch "+ch.first()+".."+ch.last()+" failed", err)
	}

	parsed, err := ParseResponse(raw)
	if err != nil {
		return nil, apperrors.NewDataError("candles", req.Symbol, "unreadable response", err)
	}

	byDate := make(map[string][]models.Candle, len(ch.dates))
	for _, d := range ch.dates {
		byDate[d] = []models.Candle{}
	}
	for _, cd := range parsed {
		d := cd.Date()
		if _, ok := byDate[d]; ok {
			byDate[d] = append(byDate[d], cd)
		}
	}

	for _, d := range ch.dates {
		day := sortDedupe(byDate[d])
		byDate[d] = day
		if err := c.store.PutBucket(ctx, key, d, day); err != nil {
			return nil, apperrors.NewDataError("candles", req.Symbol, "cache write failed", err)
		}
	}

	c.logger.Debug().
		Str("symbol", req.Symbol).
		Str("from", ch.first()).
		Str("to", ch.last()).
		Int("rows", len(parsed)).
		Dur("took", time.Since(start)).
		Msg("chunk fetched")

	return byDate, nil
}

func merge(buckets map[string][]models.Candle) []models.Candle {
	total := 0
	for _, cs := range buckets {
		total += len(cs)
	}
	all := make([]models.Candle, 0, total)
	for _, cs := range buckets {
		all = append(all, cs...)
	}
	return sortDedupe(all)
}

// sortDedupe sorts by time and keeps the last candle seen for each timestamp.
func sortDedupe(cs []models.Candle) []models.Candle {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time < cs[j].Time })
	out := cs[:0]
	for _, c := range cs {
		if n := len(out); n > 0 && out[n-1].Time == c.Time {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
