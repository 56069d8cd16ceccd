// Package services contains the business logic of the subscription
// lifecycle: checkout, activation, cancellation and the plan catalog.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/paymentprovider"
	"github.com/traderoom/trading-academy/internal/subscription"
)

// ErrFreePlanCheckout is returned when a checkout names the free plan.
var ErrFreePlanCheckout = errors.New("free plan does not require checkout")

// ErrUnknownPaymentMethod is returned when no adapter matches the
// requested payment method.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// SubscriptionRepository defines the storage methods the service needs.
type SubscriptionRepository interface {
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	GetPlanByName(ctx context.Context, name string) (*models.Plan, error)
	GetPlanByID(ctx context.Context, id int) (*models.Plan, error)

	GetUser(ctx context.Context, userUID string) (*models.User, error)

	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	GetSubscription(ctx context.Context, id int) (*models.Subscription, error)
	GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	GetSubscriptionByReference(ctx context.Context, reference string) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id int, from, to subscription.Status) (int, error)
	ActivateSubscriptionTx(ctx context.Context, subID int, periodStart time.Time, periodEnd *time.Time, hist models.HistoryEntry) error
	CancelSubscriptionTx(ctx context.Context, subID int, hist models.HistoryEntry) error

	CreateHistoryEntry(ctx context.Context, hist models.HistoryEntry) (int, error)
	ListHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.HistoryEntry, error)
}

// Cache describes the methods used to cache the plan catalog.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

const planCatalogKey = "plans:catalog"

// CheckoutResult is returned to the handler after a checkout is opened.
type CheckoutResult struct {
	SubscriptionID int    `json:"subscription_id"`
	Reference      string `json:"reference"`
	CheckoutURL    string `json:"checkout_url"`
}

// SubscriptionService implements the subscription lifecycle on top of
// the repository, the payment adapters and the plan cache.
type SubscriptionService struct {
	repo      SubscriptionRepository
	cache     Cache
	providers map[string]paymentprovider.Provider
	baseURL   string
	log       *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, providers map[string]paymentprovider.Provider, baseURL string, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		cache:     cache,
		providers: providers,
		baseURL:   baseURL,
		log:       log,
	}
}

// ListPlans returns the plan catalog, cached for an hour.
func (s *SubscriptionService) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	var plans []*models.Plan
	found, err := s.cache.Get(planCatalogKey, &plans)
	if err != nil {
		s.log.Warn("plan cache read failed", sl.Err(err))
	}
	if found {
		return plans, nil
	}

	plans, err = s.repo.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(planCatalogKey, plans, time.Hour); err != nil {
		s.log.Warn("plan cache write failed", sl.Err(err))
	}
	return plans, nil
}

// Checkout opens a payment session for a paid plan and records the
// pending subscription under the provider reference.
func (s *SubscriptionService) Checkout(ctx context.Context, userUID string, req models.DummyCheckout) (*CheckoutResult, error) {
	plan, err := s.repo.GetPlanByName(ctx, req.PlanName)
	if err != nil {
		return nil, err
	}
	if plan.Name == subscription.PlanFree {
		return nil, ErrFreePlanCheckout
	}
	provider, ok := s.providers[req.PaymentMethod]
	if !ok {
		return nil, ErrUnknownPaymentMethod
	}

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, err
	}

	reference := "sub-" + uuid.NewString()
	result, err := provider.Initiate(ctx, paymentprovider.ChargeRequest{
		Reference:     reference,
		PlanName:      plan.DisplayName,
		Amount:        plan.Price,
		Currency:      plan.Currency,
		CustomerEmail: user.Email,
		SuccessURL:    s.baseURL + "/checkout/success",
		CancelURL:     s.baseURL + "/checkout/cancelled",
	})
	if err != nil {
		return nil, fmt.Errorf("initiate %s checkout: %w", provider.Name(), err)
	}

	id, err := s.repo.CreateSubscription(ctx, models.Subscription{
		UserUID:          userUID,
		PlanID:           plan.ID,
		Status:           string(subscription.StatusPending),
		PeriodStart:      time.Now(),
		PaymentMethod:    provider.Name(),
		PaymentReference: result.Reference,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout opened",
		slog.Int("subscription_id", id),
		slog.String("plan", plan.Name),
		slog.String("provider", provider.Name()))

	return &CheckoutResult{
		SubscriptionID: id,
		Reference:      result.Reference,
		CheckoutURL:    result.CheckoutURL,
	}, nil
}

// Activate confirms the pending subscription behind a payment reference:
// the previous active row is expired, the pending row becomes active and
// the billing period is set from the plan's cycle. Safe to replay.
func (s *SubscriptionService) Activate(ctx context.Context, reference string, amount float64, currency string) error {
	sub, err := s.repo.GetSubscriptionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if subscription.Status(sub.Status) == subscription.StatusActive {
		// a replayed confirmation; nothing to do
		return nil
	}
	if !subscription.CanTransition(subscription.Status(sub.Status), subscription.StatusActive) {
		return fmt.Errorf("%w: %s -> active", subscription.ErrInvalidTransition, sub.Status)
	}

	plan, err := s.repo.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}
	periodStart := time.Now()
	periodEnd := periodEndFor(plan.BillingCycle, periodStart)

	action := subscription.ActionPayment
	if old, err := s.repo.GetActiveSubscription(ctx, sub.UserUID); err == nil && old.PlanID == sub.PlanID {
		action = subscription.ActionRenewal
	}

	hist := models.HistoryEntry{
		SubscriptionID:   sub.ID,
		UserUID:          sub.UserUID,
		ActionType:       action,
		ToPlanID:         sub.PlanID,
		Amount:           amount,
		Currency:         currency,
		GatewayReference: reference,
	}
	if err := s.repo.ActivateSubscriptionTx(ctx, sub.ID, periodStart, periodEnd, hist); err != nil {
		return err
	}

	s.log.Info("subscription activated",
		slog.Int("subscription_id", sub.ID),
		slog.String("plan", plan.Name))
	return nil
}

// Fail marks the pending subscription behind a reference as failed.
func (s *SubscriptionService) Fail(ctx context.Context, reference string) error {
	return s.finishPending(ctx, reference, subscription.StatusFailed)
}

// CancelPending marks the pending subscription behind a reference as
// cancelled, used when a checkout session expires.
func (s *SubscriptionService) CancelPending(ctx context.Context, reference string) error {
	return s.finishPending(ctx, reference, subscription.StatusCancelled)
}

func (s *SubscriptionService) finishPending(ctx context.Context, reference string, to subscription.Status) error {
	sub, err := s.repo.GetSubscriptionByReference(ctx, reference)
	if err != nil {
		return err
	}
	if !subscription.CanTransition(subscription.Status(sub.Status), to) {
		// already settled by an earlier event
		s.log.Info("skipping settled subscription",
			slog.Int("subscription_id", sub.ID),
			slog.String("status", sub.Status))
		return nil
	}
	rows, err := s.repo.UpdateSubscriptionStatus(ctx, sub.ID, subscription.StatusPending, to)
	if err != nil {
		return err
	}
	if rows == 0 {
		s.log.Info("subscription changed concurrently", slog.Int("subscription_id", sub.ID))
	}
	return nil
}

// Cancel ends the user's active subscription and writes the
// cancellation to the ledger.
func (s *SubscriptionService) Cancel(ctx context.Context, userUID string) error {
	sub, err := s.repo.GetActiveSubscription(ctx, userUID)
	if err != nil {
		return err
	}
	hist := models.HistoryEntry{
		SubscriptionID: sub.ID,
		UserUID:        userUID,
		ActionType:     subscription.ActionCancellation,
		ToPlanID:       sub.PlanID,
	}
	if err := s.repo.CancelSubscriptionTx(ctx, sub.ID, hist); err != nil {
		return err
	}
	s.log.Info("subscription cancelled", slog.Int("subscription_id", sub.ID))
	return nil
}

// Current returns the user's active subscription together with its plan.
func (s *SubscriptionService) Current(ctx context.Context, userUID string) (*models.Subscription, *models.Plan, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, userUID)
	if err != nil {
		return nil, nil, err
	}
	plan, err := s.repo.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return sub, plan, nil
}

// History returns the user's ledger entries, newest first.
func (s *SubscriptionService) History(ctx context.Context, userUID string, limit, offset int) ([]*models.HistoryEntry, error) {
	return s.repo.ListHistory(ctx, userUID, limit, offset)
}

// StartFree puts a newly registered user on the free plan for a year.
func (s *SubscriptionService) StartFree(ctx context.Context, userUID string) (int, error) {
	plan, err := s.repo.GetPlanByName(ctx, subscription.PlanFree)
	if err != nil {
		return 0, err
	}
	periodStart := time.Now()
	periodEnd := periodStart.AddDate(1, 0, 0)

	id, err := s.repo.CreateSubscription(ctx, models.Subscription{
		UserUID:       userUID,
		PlanID:        plan.ID,
		Status:        string(subscription.StatusActive),
		PeriodStart:   periodStart,
		PeriodEnd:     &periodEnd,
		PaymentMethod: "none",
	})
	if err != nil {
		return 0, err
	}
	if _, err := s.repo.CreateHistoryEntry(ctx, models.HistoryEntry{
		SubscriptionID: id,
		UserUID:        userUID,
		ActionType:     subscription.ActionPayment,
		ToPlanID:       plan.ID,
		Currency:       plan.Currency,
	}); err != nil {
		return 0, err
	}
	return id, nil
}

// AdminSetStatus overrides a subscription's status, still guarded by the
// transition table.
func (s *SubscriptionService) AdminSetStatus(ctx context.Context, subID int, to subscription.Status) error {
	sub, err := s.repo.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}
	from := subscription.Status(sub.Status)
	if !subscription.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", subscription.ErrInvalidTransition, from, to)
	}
	rows, err := s.repo.UpdateSubscriptionStatus(ctx, subID, from, to)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: subscription changed concurrently", subscription.ErrInvalidTransition)
	}
	s.log.Info("status overridden",
		slog.Int("subscription_id", subID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	return nil
}

// periodEndFor computes the end of a billing period; lifetime plans have
// no end.
func periodEndFor(cycle string, start time.Time) *time.Time {
	var end time.Time
	switch cycle {
	case subscription.CycleMonthly:
		end = start.AddDate(0, 1, 0)
	case subscription.CycleYearly:
		end = start.AddDate(1, 0, 0)
	case subscription.CycleLifetime:
		return nil
	default:
		end = start.AddDate(0, 1, 0)
	}
	return &end
}
