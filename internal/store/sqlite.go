package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Day-granular candle cache; an empty list marks a fetched day without data
	CREATE TABLE IF NOT EXISTS candle_cache (
		symbol TEXT NOT NULL,
		segment TEXT NOT NULL,
		interval TEXT NOT NULL,
		date TEXT NOT NULL,
		candles_json TEXT NOT NULL,
		candle_count INTEGER NOT NULL DEFAULT 0,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (symbol, segment, interval, date)
	);

	-- Completed backtest runs
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		algo_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		segment TEXT NOT NULL,
		interval TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		config_json TEXT,
		metrics_json TEXT,
		trades_json TEXT,
		equity_curve_json TEXT,
		created_at DATETIME NOT NULL
	);

	-- Daily-picks candidate snapshots
	CREATE TABLE IF NOT EXISTS daily_picks_snapshots (
		date TEXT PRIMARY KEY,
		snapshot_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Live and paper trades watched by the position monitor
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		trade_type TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		target REAL NOT NULL,
		quantity INTEGER NOT NULL,
		capital_used REAL NOT NULL DEFAULT 0,
		risk_amount REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'OPEN',
		exit_price REAL,
		actual_pnl REAL,
		actual_fees REAL,
		entry_date DATETIME NOT NULL,
		exit_date DATETIME,
		is_paper INTEGER NOT NULL DEFAULT 1,
		order_status TEXT,
		order_id TEXT,
		exit_trigger TEXT,
		algo_id TEXT,
		notes TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_backtest_runs_algo ON backtest_runs(algo_id);
	CREATE INDEX IF NOT EXISTS idx_backtest_runs_created ON backtest_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
