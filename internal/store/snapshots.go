package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSnapshot returns the stored snapshot JSON for date.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, date string) ([]byte, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot_json FROM daily_picks_snapshots WHERE date = ?
	`, date).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return []byte(payload), true, nil
}

// SaveSnapshot stores the snapshot JSON for date, replacing any previous one.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, date string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_picks_snapshots (date, snapshot_json, created_at)
		VALUES (?, ?, ?)
	`, date, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ClearSnapshots deletes all snapshots and returns the count removed.
func (s *SQLiteStore) ClearSnapshots(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM daily_picks_snapshots`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return res.RowsAffected()
}
