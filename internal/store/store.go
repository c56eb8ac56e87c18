// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/abhishekslab/growwbot/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	CandleStore
	RunStore
	SnapshotStore
	TradeStore
	Close() error
}

// BucketKey identifies a series in the candle cache.
type BucketKey struct {
	Symbol   string
	Segment  string
	Interval string
}

// CandleStore persists day-granular candle buckets.
type CandleStore interface {
	// GetBuckets returns the cached buckets among dates. A present key with an
	// empty slice is a fetched-but-empty day.
	GetBuckets(ctx context.Context, key BucketKey, dates []string) (map[string][]models.Candle, error)
	// PutBucket replaces the bucket for one date.
	PutBucket(ctx context.Context, key BucketKey, date string, candles []models.Candle) error
	CacheStats(ctx context.Context) (*CacheStats, error)
	// ClearCandles deletes buckets for symbol, or all buckets when symbol is empty.
	ClearCandles(ctx context.Context, symbol string) (int64, error)
}

// RunStore persists backtest results.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.BacktestRun) (int64, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id int64) (*models.BacktestRun, error)
	DeleteRun(ctx context.Context, id int64) (bool, error)
}

// SnapshotStore persists daily-picks candidate snapshots as opaque JSON.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, date string) ([]byte, bool, error)
	SaveSnapshot(ctx context.Context, date string, data []byte) error
	ClearSnapshots(ctx context.Context) (int64, error)
}

// TradeStore persists live and paper trades.
type TradeStore interface {
	CreateTrade(ctx context.Context, trade *models.Trade) (int64, error)
	GetTrade(ctx context.Context, id int64) (*models.Trade, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	UpdateTrade(ctx context.Context, id int64, update models.TradeUpdate) error
}

// CacheStats summarises the candle cache.
type CacheStats struct {
	TotalEntries int64  `json:"total_entries"`
	SizeBytes    int64  `json:"size_bytes"`
	OldestDate   string `json:"oldest_date,omitempty"`
	NewestDate   string `json:"newest_date,omitempty"`
}

// RunSummary is a backtest run without its trades and equity curve.
type RunSummary struct {
	ID        int64           `json:"id"`
	AlgoID    string          `json:"algo_id"`
	Symbol    string          `json:"symbol"`
	Interval  string          `json:"interval"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Metrics   *models.Metrics `json:"metrics,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Status      []models.TradeStatus
	OrderStatus []models.OrderStatus
	Symbol      string
	AlgoID      string
	IsPaper     *bool
	StartDate   time.Time
	EndDate     time.Time
	Limit       int
}
