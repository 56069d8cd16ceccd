package repository

import (
	"context"
	"fmt"

	"github.com/traderoom/trading-academy/internal/models"
)

// UpsertHolding creates or replaces one portfolio position.
func (s *Storage) UpsertHolding(ctx context.Context, h models.Holding) (int, error) {
	const op = "storage.UpsertHolding"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int
	query := `INSERT INTO portfolio_holdings (user_uid, asset, amount)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (user_uid, asset) DO UPDATE SET amount = EXCLUDED.amount
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query, h.UserUID, h.Asset, h.Amount).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// RemoveHolding deletes one position and returns the deleted row count.
func (s *Storage) RemoveHolding(ctx context.Context, userUID, asset string) (int, error) {
	const op = "storage.RemoveHolding"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM portfolio_holdings WHERE user_uid = $1 AND asset = $2`
	result, err := s.DB.ExecContext(ctx, query, userUID, asset)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListHoldings returns a user's portfolio positions.
func (s *Storage) ListHoldings(ctx context.Context, userUID string) ([]*models.Holding, error) {
	const op = "storage.ListHoldings"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, asset, amount
			  FROM portfolio_holdings
			  WHERE user_uid = $1
			  ORDER BY asset`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Holding
	for rows.Next() {
		var item models.Holding
		if err := rows.Scan(&item.ID, &item.UserUID, &item.Asset, &item.Amount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
