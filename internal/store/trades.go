package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/abhishekslab/growwbot/internal/models"
)

// ErrTradeNotFound is returned when no trade has the requested ID.
var ErrTradeNotFound = errors.New("trade not found")

var tradeColumns = []string{
	"id", "symbol", "trade_type", "entry_price", "stop_loss", "target", "quantity",
	"capital_used", "risk_amount", "status", "exit_price", "actual_pnl", "actual_fees",
	"entry_date", "exit_date", "is_paper", "order_status", "order_id", "exit_trigger",
	"algo_id", "notes", "created_at", "updated_at",
}

// CreateTrade inserts a trade and returns its ID.
func (s *SQLiteStore) CreateTrade(ctx context.Context, trade *models.Trade) (int64, error) {
	now := time.Now().UTC()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = now
	}
	trade.UpdatedAt = now
	if trade.Status == "" {
		trade.Status = models.TradeOpen
	}
	if trade.EntryDate.IsZero() {
		trade.EntryDate = now
	}

	query, args, err := sq.Insert("trades").
		Columns(tradeColumns[1:]...).
		Values(
			trade.Symbol, string(trade.TradeType), trade.EntryPrice, trade.StopLoss, trade.Target, trade.Quantity,
			trade.CapitalUsed, trade.RiskAmount, string(trade.Status), trade.ExitPrice, trade.ActualPnL, trade.ActualFees,
			trade.EntryDate, trade.ExitDate, trade.IsPaper, nullString(string(trade.OrderStatus)), nullString(trade.OrderID),
			nullString(string(trade.ExitTrigger)), nullString(trade.AlgoID), nullString(trade.Notes),
			trade.CreatedAt, trade.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read trade id: %w", err)
	}
	trade.ID = id
	return id, nil
}

// GetTrade returns a single trade.
func (s *SQLiteStore) GetTrade(ctx context.Context, id int64) (*models.Trade, error) {
	query, args, err := sq.Select(tradeColumns...).From("trades").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	trade, err := scanTrade(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrTradeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return trade, nil
}

// ListTrades retrieves trades matching the filter, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	builder := sq.Select(tradeColumns...).From("trades")

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if len(filter.OrderStatus) > 0 {
		statuses := make([]string, len(filter.OrderStatus))
		for i, st := range filter.OrderStatus {
			statuses[i] = string(st)
		}
		builder = builder.Where(sq.Eq{"order_status": statuses})
	}
	if filter.Symbol != "" {
		builder = builder.Where(sq.Eq{"symbol": filter.Symbol})
	}
	if filter.AlgoID != "" {
		builder = builder.Where(sq.Eq{"algo_id": filter.AlgoID})
	}
	if filter.IsPaper != nil {
		builder = builder.Where(sq.Eq{"is_paper": *filter.IsPaper})
	}
	if !filter.StartDate.IsZero() {
		builder = builder.Where(sq.GtOrEq{"entry_date": filter.StartDate})
	}
	if !filter.EndDate.IsZero() {
		builder = builder.Where(sq.LtOrEq{"entry_date": filter.EndDate})
	}

	builder = builder.OrderBy("entry_date DESC", "id DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}

	return trades, rows.Err()
}

// UpdateTrade applies the non-nil fields of update.
func (s *SQLiteStore) UpdateTrade(ctx context.Context, id int64, update models.TradeUpdate) error {
	builder := sq.Update("trades").Set("updated_at", time.Now().UTC()).Where(sq.Eq{"id": id})

	if update.Status != nil {
		builder = builder.Set("status", string(*update.Status))
	}
	if update.ExitPrice != nil {
		builder = builder.Set("exit_price", *update.ExitPrice)
	}
	if update.ActualPnL != nil {
		builder = builder.Set("actual_pnl", *update.ActualPnL)
	}
	if update.ActualFees != nil {
		builder = builder.Set("actual_fees", *update.ActualFees)
	}
	if update.ExitDate != nil {
		builder = builder.Set("exit_date", update.ExitDate.UTC())
	}
	if update.ExitTrigger != nil {
		builder = builder.Set("exit_trigger", string(*update.ExitTrigger))
	}
	if update.OrderStatus != nil {
		builder = builder.Set("order_status", string(*update.OrderStatus))
	}
	if update.OrderID != nil {
		builder = builder.Set("order_id", *update.OrderID)
	}
	if update.Notes != nil {
		builder = builder.Set("notes", *update.Notes)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrTradeNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var t models.Trade
	var tradeType, status string
	var exitPrice, pnl, fees sql.NullFloat64
	var exitDate sql.NullTime
	var orderStatus, orderID, trigger, algoID, notes sql.NullString

	err := row.Scan(
		&t.ID, &t.Symbol, &tradeType, &t.EntryPrice, &t.StopLoss, &t.Target, &t.Quantity,
		&t.CapitalUsed, &t.RiskAmount, &status, &exitPrice, &pnl, &fees,
		&t.EntryDate, &exitDate, &t.IsPaper, &orderStatus, &orderID, &trigger,
		&algoID, &notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.TradeType = models.TradeType(tradeType)
	t.Status = models.TradeStatus(status)
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if pnl.Valid {
		t.ActualPnL = &pnl.Float64
	}
	if fees.Valid {
		t.ActualFees = &fees.Float64
	}
	if exitDate.Valid {
		t.ExitDate = &exitDate.Time
	}
	t.OrderStatus = models.OrderStatus(orderStatus.String)
	t.OrderID = orderID.String
	t.ExitTrigger = models.ExitTrigger(trigger.String)
	t.AlgoID = algoID.String
	t.Notes = notes.String
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
