package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/abhishekslab/growwbot/internal/errors"
	"github.com/abhishekslab/growwbot/internal/models"
)

// DefaultHistoryLimit is the number of runs listed when no limit is given.
const DefaultHistoryLimit = 50

// SaveRun persists a completed backtest and returns its ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *models.BacktestRun) (int64, error) {
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return 0, fmt.Errorf("failed to encode metrics: %w", err)
	}
	trades, err := json.Marshal(nonNilTrades(run.Trades))
	if err != nil {
		return 0, fmt.Errorf("failed to encode trades: %w", err)
	}
	curve, err := json.Marshal(nonNilCurve(run.EquityCurve))
	if err != nil {
		return 0, fmt.Errorf("failed to encode equity curve: %w", err)
	}
	config := run.Config
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (algo_id, symbol, exchange, segment, interval, start_date, end_date,
			config_json, metrics_json, trades_json, equity_curve_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.AlgoID, run.Symbol, run.Exchange, run.Segment, run.Interval, run.StartDate, run.EndDate,
		string(config), string(metrics), string(trades), string(curve), run.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to save backtest run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	run.ID = id
	return id, nil
}

// ListRuns returns the newest runs first, without trades or curves.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, algo_id, symbol, interval, start_date, end_date, metrics_json, created_at
		FROM backtest_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var metrics sql.NullString
		if err := rows.Scan(&r.ID, &r.AlgoID, &r.Symbol, &r.Interval, &r.StartDate, &r.EndDate, &metrics, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backtest run: %w", err)
		}
		if metrics.Valid && metrics.String != "" && metrics.String != "null" {
			var m models.Metrics
			if err := json.Unmarshal([]byte(metrics.String), &m); err == nil {
				r.Metrics = &m
			}
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetRun returns a full backtest run.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*models.BacktestRun, error) {
	var run models.BacktestRun
	var config, metrics, trades, curve sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, algo_id, symbol, exchange, segment, interval, start_date, end_date,
			config_json, metrics_json, trades_json, equity_curve_json, created_at
		FROM backtest_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.AlgoID, &run.Symbol, &run.Exchange, &run.Segment, &run.Interval,
		&run.StartDate, &run.EndDate, &config, &metrics, &trades, &curve, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest run: %w", err)
	}

	if config.Valid {
		run.Config = json.RawMessage(config.String)
	}
	if metrics.Valid && metrics.String != "null" {
		run.Metrics = &models.Metrics{}
		if err := json.Unmarshal([]byte(metrics.String), run.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
	}
	if trades.Valid {
		if err := json.Unmarshal([]byte(trades.String), &run.Trades); err != nil {
			return nil, fmt.Errorf("failed to decode trades: %w", err)
		}
	}
	if curve.Valid {
		if err := json.Unmarshal([]byte(curve.String), &run.EquityCurve); err != nil {
			return nil, fmt.Errorf("failed to decode equity curve: %w", err)
		}
	}

	return &run, nil
}

// DeleteRun removes a run and reports whether it existed.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete backtest run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nonNilTrades(t []models.ClosedTrade) []models.ClosedTrade {
	if t == nil {
		return []models.ClosedTrade{}
	}
	return t
}

func nonNilCurve(c []models.EquityPoint) []models.EquityPoint {
	if c == nil {
		return []models.EquityPoint{}
	}
	return c
}
