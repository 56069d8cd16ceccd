package repository

import (
	"context"
	"fmt"
)

// RecordWebhookEvent inserts one row into the processed-event ledger.
// Returns false when the (provider, event_id) pair was already recorded,
// which makes webhook processing idempotent under provider retries.
func (s *Storage) RecordWebhookEvent(ctx context.Context, provider, eventID, status string, payload []byte) (bool, error) {
	const op = "storage.RecordWebhookEvent"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO webhook_events (provider, event_id, status, payload)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (provider, event_id) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query, provider, eventID, status, payload)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// DeleteWebhookEvent removes one row from the ledger. Used when the
// transition behind an event failed, so the provider's retry is not
// swallowed as a duplicate.
func (s *Storage) DeleteWebhookEvent(ctx context.Context, provider, eventID string) error {
	const op = "storage.DeleteWebhookEvent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM webhook_events WHERE provider = $1 AND event_id = $2`
	if _, err := s.DB.ExecContext(ctx, query, provider, eventID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
