package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/subscription"
)

// CreateSubscription inserts a new subscription row and returns its ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, plan_id, status, current_period_start,
			      current_period_end, payment_method, payment_reference)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, sub.PlanID, sub.Status, sub.PeriodStart, sub.PeriodEnd,
		sub.PaymentMethod, sub.PaymentReference).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetSubscription returns one subscription row by ID.
func (s *Storage) GetSubscription(ctx context.Context, id int) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, status, current_period_start, current_period_end,
			      payment_method, payment_reference, created_at, updated_at
			  FROM subscriptions
			  WHERE id = $1`
	return s.scanSubscriptionRow(s.DB.QueryRowContext(ctx, query, id), op)
}

// GetActiveSubscription returns the user's active subscription row.
func (s *Storage) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, status, current_period_start, current_period_end,
			      payment_method, payment_reference, created_at, updated_at
			  FROM subscriptions
			  WHERE user_uid = $1 AND status = 'active'`
	return s.scanSubscriptionRow(s.DB.QueryRowContext(ctx, query, userUID), op)
}

// GetSubscriptionByReference returns the subscription row created for a
// provider payment reference.
func (s *Storage) GetSubscriptionByReference(ctx context.Context, reference string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByReference"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, status, current_period_start, current_period_end,
			      payment_method, payment_reference, created_at, updated_at
			  FROM subscriptions
			  WHERE payment_reference = $1
			  ORDER BY id DESC
			  LIMIT 1`
	return s.scanSubscriptionRow(s.DB.QueryRowContext(ctx, query, reference), op)
}

// UpdateSubscriptionStatus moves one row from one status to another.
// The WHERE clause repeats the expected current status, so a concurrent
// mutation makes this a no-op; callers check the returned count.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, id int, from, to subscription.Status) (int, error) {
	const op = "storage.UpdateSubscriptionStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1, updated_at = now()
			  WHERE id = $2 AND status = $3`
	result, err := s.DB.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ActivateSubscriptionTx confirms a pending subscription in one
// transaction: any previous active row of the same user is expired, the
// pending row becomes active with its billing period set, and a ledger
// entry is written. Returns ErrNotFound when the row is no longer pending.
func (s *Storage) ActivateSubscriptionTx(ctx context.Context, subID int, periodStart time.Time, periodEnd *time.Time, hist models.HistoryEntry) error {
	const op = "storage.ActivateSubscriptionTx"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var oldID, oldPlanID sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT id, plan_id FROM subscriptions
		 WHERE user_uid = $1 AND status = 'active'
		 FOR UPDATE`, hist.UserUID).Scan(&oldID, &oldPlanID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if oldID.Valid {
		if _, err = tx.ExecContext(ctx,
			`UPDATE subscriptions SET status = 'expired', updated_at = now() WHERE id = $1`,
			oldID.Int64); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		from := int(oldPlanID.Int64)
		hist.FromPlanID = &from
		if from != hist.ToPlanID {
			hist.ActionType = subscription.ActionUpgrade
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = 'active', current_period_start = $1, current_period_end = $2, updated_at = now()
		 WHERE id = $3 AND status = 'pending'`,
		periodStart, periodEnd, subID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if err = insertHistoryTx(ctx, tx, hist); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DowngradeToFreeTx expires one active subscription and creates the
// replacement free-plan row in the same transaction, together with the
// downgrade ledger entry. Returns ErrNotFound when the row was already
// processed by a concurrent scan.
func (s *Storage) DowngradeToFreeTx(ctx context.Context, subID int, userUID string, fromPlanID, freePlanID int, periodEnd time.Time) error {
	const op = "storage.DowngradeToFreeTx"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'expired', updated_at = now()
		 WHERE id = $1 AND status = 'active'`, subID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var newID int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO subscriptions (user_uid, plan_id, status, current_period_start, current_period_end, payment_method)
		 VALUES ($1, $2, 'active', now(), $3, 'none')
		 RETURNING id`, userUID, freePlanID, periodEnd).Scan(&newID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hist := models.HistoryEntry{
		SubscriptionID: newID,
		UserUID:        userUID,
		ActionType:     subscription.ActionDowngrade,
		FromPlanID:     &fromPlanID,
		ToPlanID:       freePlanID,
	}
	if err = insertHistoryTx(ctx, tx, hist); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CancelSubscriptionTx cancels one active subscription and writes the
// cancellation ledger entry in the same transaction.
func (s *Storage) CancelSubscriptionTx(ctx context.Context, subID int, hist models.HistoryEntry) error {
	const op = "storage.CancelSubscriptionTx"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'cancelled', updated_at = now()
		 WHERE id = $1 AND status IN ('active', 'pending')`, subID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if err = insertHistoryTx(ctx, tx, hist); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindExpiringWithin returns active subscriptions whose period ends
// within the given window, joined with the owner and plan for the
// reminder notification.
func (s *Storage) FindExpiringWithin(ctx context.Context, window time.Duration) ([]*models.ExpiringSubscription, error) {
	const op = "storage.FindExpiringWithin"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT s.id, u.email, u.username, p.display_name, s.current_period_end
			  FROM subscriptions s
			  JOIN users u ON s.user_uid = u.uid
			  JOIN plans p ON s.plan_id = p.id
			  WHERE s.status = 'active'
			    AND s.current_period_end IS NOT NULL
			    AND s.current_period_end > now()
			    AND s.current_period_end <= now() + $1::interval`
	rows, err := s.DB.QueryContext(ctx, query, fmt.Sprintf("%d seconds", int(window.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExpiringSubscription
	for rows.Next() {
		var item models.ExpiringSubscription
		if err := rows.Scan(&item.SubscriptionID, &item.Email, &item.Username,
			&item.PlanDisplayName, &item.PeriodEnd); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindExpired returns active subscriptions whose period end is in the past.
func (s *Storage) FindExpired(ctx context.Context) ([]*models.Subscription, error) {
	const op = "storage.FindExpired"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan_id, status, current_period_start, current_period_end,
			      payment_method, payment_reference, created_at, updated_at
			  FROM subscriptions
			  WHERE status = 'active'
			    AND current_period_end IS NOT NULL
			    AND current_period_end < now()`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		item, err := scanSubscription(rows)
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

func (s *Storage) scanSubscriptionRow(row *sql.Row, op string) (*models.Subscription, error) {
	item, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var item models.Subscription
	var periodEnd sql.NullTime
	if err := row.Scan(&item.ID, &item.UserUID, &item.PlanID, &item.Status,
		&item.PeriodStart, &periodEnd, &item.PaymentMethod, &item.PaymentReference,
		&item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		item.PeriodEnd = &periodEnd.Time
	}
	return &item, nil
}
