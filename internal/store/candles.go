package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/abhishekslab/growwbot/internal/models"
)

// GetBuckets retrieves cached candle buckets for the given dates.
func (s *SQLiteStore) GetBuckets(ctx context.Context, key BucketKey, dates []string) (map[string][]models.Candle, error) {
	out := make(map[string][]models.Candle, len(dates))
	if len(dates) == 0 {
		return out, nil
	}

	query, args, err := sq.Select("date", "candles_json").
		From("candle_cache").
		Where(sq.Eq{
			"symbol":   key.Symbol,
			"segment":  key.Segment,
			"interval": key.Interval,
			"date":     dates,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bucket query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candle cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date, payload string
		if err := rows.Scan(&date, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		candles := []models.Candle{}
		if err := json.Unmarshal([]byte(payload), &candles); err != nil {
			// A corrupt bucket is treated as missing and will be refetched.
			continue
		}
		out[date] = candles
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buckets: %w", err)
	}

	return out, nil
}

// PutBucket writes the bucket for one date, replacing any previous value.
func (s *SQLiteStore) PutBucket(ctx context.Context, key BucketKey, date string, candles []models.Candle) error {
	if candles == nil {
		candles = []models.Candle{}
	}
	payload, err := json.Marshal(candles)
	if err != nil {
		return fmt.Errorf("failed to encode bucket: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO candle_cache (symbol, segment, interval, date, candles_json, candle_count, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, key.Symbol, key.Segment, key.Interval, date, string(payload), len(candles), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write bucket: %w", err)
	}
	return nil
}

// CacheStats returns entry count, payload size and the covered date range.
func (s *SQLiteStore) CacheStats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats
	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(candles_json)), 0), MIN(date), MAX(date)
		FROM candle_cache
	`).Scan(&stats.TotalEntries, &stats.SizeBytes, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", err)
	}
	stats.OldestDate = oldest.String
	stats.NewestDate = newest.String
	return &stats, nil
}

// ClearCandles deletes cached buckets.
func (s *SQLiteStore) ClearCandles(ctx context.Context, symbol string) (int64, error) {
	builder := sq.Delete("candle_cache")
	if symbol != "" {
		builder = builder.Where(sq.Eq{"symbol": symbol})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear candle cache: %w", err)
	}
	return res.RowsAffected()
}
