package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/traderoom/trading-academy/internal/models"
)

// CreateHistoryEntry appends one row to the subscription ledger.
func (s *Storage) CreateHistoryEntry(ctx context.Context, hist models.HistoryEntry) (int, error) {
	const op = "storage.CreateHistoryEntry"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int
	query := `INSERT INTO subscription_history (subscription_id, user_uid, action_type,
			      from_plan_id, to_plan_id, amount, currency, gateway_reference)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		hist.SubscriptionID, hist.UserUID, hist.ActionType, hist.FromPlanID,
		hist.ToPlanID, hist.Amount, hist.Currency, hist.GatewayReference).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListHistory returns a user's ledger entries, newest first.
func (s *Storage) ListHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.HistoryEntry, error) {
	const op = "storage.ListHistory"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, subscription_id, user_uid, action_type, from_plan_id, to_plan_id,
			      amount, currency, gateway_reference, created_at
			  FROM subscription_history
			  WHERE user_uid = $1
			  ORDER BY id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.HistoryEntry
	for rows.Next() {
		var item models.HistoryEntry
		var fromPlan sql.NullInt64
		if err := rows.Scan(&item.ID, &item.SubscriptionID, &item.UserUID, &item.ActionType,
			&fromPlan, &item.ToPlanID, &item.Amount, &item.Currency,
			&item.GatewayReference, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if fromPlan.Valid {
			from := int(fromPlan.Int64)
			item.FromPlanID = &from
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountHistoryByReference counts ledger entries carrying a gateway
// reference. Used to assert webhook replays do not double-count.
func (s *Storage) CountHistoryByReference(ctx context.Context, reference string) (int, error) {
	const op = "storage.CountHistoryByReference"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM subscription_history WHERE gateway_reference = $1`
	if err := s.DB.QueryRowContext(ctx, query, reference).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func insertHistoryTx(ctx context.Context, tx *sql.Tx, hist models.HistoryEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO subscription_history (subscription_id, user_uid, action_type,
		     from_plan_id, to_plan_id, amount, currency, gateway_reference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		hist.SubscriptionID, hist.UserUID, hist.ActionType, hist.FromPlanID,
		hist.ToPlanID, hist.Amount, hist.Currency, hist.GatewayReference)
	return err
}
