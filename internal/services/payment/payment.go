// Package services processes payment gateway webhook events: the
// idempotency ledger and the mapping from provider statuses to
// subscription transitions.
package services

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/traderoom/trading-academy/internal/paymentprovider"
)

var (
	webhooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_webhooks_processed_total",
		Help: "Webhook events applied to a subscription.",
	}, []string{"provider", "status"})
	webhooksDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_webhooks_duplicate_total",
		Help: "Webhook events skipped by the idempotency ledger.",
	}, []string{"provider"})
)

// WebhookRepository records processed events.
type WebhookRepository interface {
	RecordWebhookEvent(ctx context.Context, provider, eventID, status string, payload []byte) (bool, error)
	DeleteWebhookEvent(ctx context.Context, provider, eventID string) error
}

// SubscriptionLifecycle is the slice of the subscription service the
// webhook processor drives.
type SubscriptionLifecycle interface {
	Activate(ctx context.Context, reference string, amount float64, currency string) error
	Fail(ctx context.Context, reference string) error
	CancelPending(ctx context.Context, reference string) error
}

// PaymentService applies verified provider events to subscriptions.
type PaymentService struct {
	repo          WebhookRepository
	subscriptions SubscriptionLifecycle
	log           *slog.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(repo WebhookRepository, subscriptions SubscriptionLifecycle, log *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:          repo,
		subscriptions: subscriptions,
		log:           log,
	}
}

// ProcessEvent records the event in the ledger and applies the matching
// subscription transition. A replayed event is acknowledged without
// touching the subscription, so provider retries cannot double-apply.
func (s *PaymentService) ProcessEvent(ctx context.Context, provider string, event *paymentprovider.Event, payload []byte) error {
	inserted, err := s.repo.RecordWebhookEvent(ctx, provider, event.ID, string(event.Status), payload)
	if err != nil {
		return err
	}
	if !inserted {
		webhooksDuplicate.WithLabelValues(provider).Inc()
		s.log.Info("duplicate webhook event skipped",
			slog.String("provider", provider),
			slog.String("event_id", event.ID))
		return nil
	}

	switch event.Status {
	case paymentprovider.StatusSucceeded:
		err = s.subscriptions.Activate(ctx, event.Reference, event.Amount, event.Currency)
	case paymentprovider.StatusFailed:
		err = s.subscriptions.Fail(ctx, event.Reference)
	case paymentprovider.StatusCancelled:
		err = s.subscriptions.CancelPending(ctx, event.Reference)
	default:
		// intermediate gateway states carry no transition
		s.log.Info("webhook event acknowledged without transition",
			slog.String("provider", provider),
			slog.String("event_id", event.ID),
			slog.String("status", string(event.Status)))
		return nil
	}
	if err != nil {
		// release the ledger row so the provider's retry is re-applied
		// instead of being swallowed as a duplicate
		if delErr := s.repo.DeleteWebhookEvent(ctx, provider, event.ID); delErr != nil {
			s.log.Error("failed to release webhook event after transition error",
				slog.String("provider", provider),
				slog.String("event_id", event.ID),
				slog.Any("err", delErr))
		}
		return err
	}

	webhooksProcessed.WithLabelValues(provider, string(event.Status)).Inc()
	s.log.Info("webhook event applied",
		slog.String("provider", provider),
		slog.String("event_id", event.ID),
		slog.String("reference", event.Reference),
		slog.String("status", string(event.Status)))
	return nil
}
