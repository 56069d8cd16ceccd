package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/traderoom/trading-academy/internal/models"
)

// CreateTrade inserts one journal trade and returns its ID.
func (s *Storage) CreateTrade(ctx context.Context, trade models.Trade) (int, error) {
	const op = "storage.CreateTrade"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int
	query := `INSERT INTO journal_trades (user_uid, symbol, direction, entry_price, exit_price,
			      size, stop_price, pnl, opened_at, closed_at, notes)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		trade.UserUID, trade.Symbol, trade.Direction, trade.EntryPrice, trade.ExitPrice,
		trade.Size, trade.StopPrice, trade.PnL, trade.OpenedAt, trade.ClosedAt, trade.Notes).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// RemoveTrade deletes one trade owned by the user and returns the number
// of deleted rows.
func (s *Storage) RemoveTrade(ctx context.Context, id int, userUID string) (int, error) {
	const op = "storage.RemoveTrade"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM journal_trades WHERE id = $1 AND user_uid = $2`
	result, err := s.DB.ExecContext(ctx, query, id, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListTrades returns a user's trades ordered by close time, then open time.
func (s *Storage) ListTrades(ctx context.Context, userUID string, limit, offset int) ([]*models.Trade, error) {
	const op = "storage.ListTrades"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, symbol, direction, entry_price, exit_price, size,
			      stop_price, pnl, opened_at, closed_at, notes
			  FROM journal_trades
			  WHERE user_uid = $1
			  ORDER BY closed_at NULLS LAST, opened_at
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Trade
	for rows.Next() {
		item, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListClosedTrades returns a user's closed trades within a period,
// ordered by close time. Zero period bounds mean no bound.
func (s *Storage) ListClosedTrades(ctx context.Context, userUID string, from, to time.Time) ([]*models.Trade, error) {
	const op = "storage.ListClosedTrades"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, symbol, direction, entry_price, exit_price, size,
			      stop_price, pnl, opened_at, closed_at, notes
			  FROM journal_trades
			  WHERE user_uid = $1
			    AND closed_at IS NOT NULL
			    AND ($2::timestamptz IS NULL OR closed_at >= $2)
			    AND ($3::timestamptz IS NULL OR closed_at < $3)
			  ORDER BY closed_at`
	var fromArg, toArg any
	if !from.IsZero() {
		fromArg = from
	}
	if !to.IsZero() {
		toArg = to
	}
	rows, err := s.DB.QueryContext(ctx, query, userUID, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Trade
	for rows.Next() {
		item, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpsertMetrics stores the recomputed performance metrics for one period.
func (s *Storage) UpsertMetrics(ctx context.Context, m models.PerformanceMetrics) error {
	const op = "storage.UpsertMetrics"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO journal_metrics (user_uid, period, total_trades, win_rate, avg_win,
			      avg_loss, profit_factor, max_drawdown, computed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			  ON CONFLICT (user_uid, period) DO UPDATE SET
			      total_trades = EXCLUDED.total_trades,
			      win_rate = EXCLUDED.win_rate,
			      avg_win = EXCLUDED.avg_win,
			      avg_loss = EXCLUDED.avg_loss,
			      profit_factor = EXCLUDED.profit_factor,
			      max_drawdown = EXCLUDED.max_drawdown,
			      computed_at = now()`
	if _, err := s.DB.ExecContext(ctx, query,
		m.UserUID, m.Period, m.TotalTrades, m.WinRate, m.AvgWin,
		m.AvgLoss, m.ProfitFactor, m.MaxDrawdown); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var item models.Trade
	var closedAt sql.NullTime
	if err := row.Scan(&item.ID, &item.UserUID, &item.Symbol, &item.Direction,
		&item.EntryPrice, &item.ExitPrice, &item.Size, &item.StopPrice, &item.PnL,
		&item.OpenedAt, &closedAt, &item.Notes); err != nil {
		return nil, err
	}
	if closedAt.Valid {
		item.ClosedAt = &closedAt.Time
	}
	return &item, nil
}

// GetTrade returns one trade by ID.
func (s *Storage) GetTrade(ctx context.Context, id int) (*models.Trade, error) {
	const op = "storage.GetTrade"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, symbol, direction, entry_price, exit_price, size,
			      stop_price, pnl, opened_at, closed_at, notes
			  FROM journal_trades
			  WHERE id = $1`
	item, err := scanTrade(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}
