// Package services runs the subscription expiration scheduler: the
// reminder scan and the downgrade-to-free scan.
package services

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/streadway/amqp"

	"github.com/traderoom/trading-academy/internal/lib/rabbitmq"
	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/storage/repository"
	"github.com/traderoom/trading-academy/internal/subscription"
)

// ReminderWindow is how far ahead of the period end users get a renewal
// reminder.
const ReminderWindow = 7 * 24 * time.Hour

const (
	reminderInterval  = 12 * time.Hour
	downgradeInterval = time.Hour
)

var (
	remindersPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "academy_scheduler_reminders_published_total",
		Help: "Expiration reminders published to the notification queue.",
	})
	downgradesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "academy_scheduler_downgrades_applied_total",
		Help: "Expired subscriptions downgraded to the free plan.",
	})
	scanErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "academy_scheduler_scan_errors_total",
		Help: "Per-row failures during scheduler scans.",
	})
)

// SchedulerRepository defines the storage methods of both scans. The
// advisory locks serialize each scan across scheduler replicas; the two
// scans use distinct keys and never block each other.
type SchedulerRepository interface {
	FindExpiringWithin(ctx context.Context, window time.Duration) ([]*models.ExpiringSubscription, error)
	FindExpired(ctx context.Context) ([]*models.Subscription, error)
	DowngradeToFreeTx(ctx context.Context, subID int, userUID string, fromPlanID, freePlanID int, periodEnd time.Time) error
	GetPlanByName(ctx context.Context, name string) (*models.Plan, error)
	TryAdvisoryLock(ctx context.Context, key int64) (*sql.Conn, bool, error)
	AdvisoryUnlock(ctx context.Context, conn *sql.Conn, key int64) error
}

// SchedulerService owns the two periodic scans.
type SchedulerService struct {
	repo    SchedulerRepository
	log     *slog.Logger
	publish func(ch *amqp.Channel, exchange, routingKey string, message any) error
}

// NewSchedulerService creates a new SchedulerService.
func NewSchedulerService(repo SchedulerRepository, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:    repo,
		log:     log,
		publish: rabbitmq.PublishMessage,
	}
}

// RunReminderLoop runs the reminder scan immediately and then every 12
// hours until the context is cancelled.
func (s *SchedulerService) RunReminderLoop(ctx context.Context, channel *amqp.Channel) {
	s.RunReminderScan(ctx, channel)

	ticker := time.NewTicker(reminderInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunReminderScan(ctx, channel)
		}
	}
}

// RunDowngradeLoop runs the downgrade scan immediately and then every
// hour until the context is cancelled.
func (s *SchedulerService) RunDowngradeLoop(ctx context.Context) {
	s.RunDowngradeScan(ctx)

	ticker := time.NewTicker(downgradeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunDowngradeScan(ctx)
		}
	}
}

// RunReminderScan publishes one reminder per subscription expiring
// within the window. Reminders are intentionally not deduplicated: each
// scan publishes for every row still inside the window.
func (s *SchedulerService) RunReminderScan(ctx context.Context, channel *amqp.Channel) {
	conn, locked, err := s.repo.TryAdvisoryLock(ctx, repository.ReminderScanLockKey)
	if err != nil {
		s.log.Error("failed to take scheduler lock", sl.Err(err))
		return
	}
	if !locked {
		s.log.Info("reminder scan already running elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.repo.AdvisoryUnlock(ctx, conn, repository.ReminderScanLockKey); err != nil {
			s.log.Error("failed to release scheduler lock", sl.Err(err))
		}
	}()

	s.log.Info("starting reminder scan")
	expiring, err := s.repo.FindExpiringWithin(ctx, ReminderWindow)
	if err != nil {
		s.log.Error("failed to find expiring subscriptions", sl.Err(err))
		scanErrors.Inc()
		return
	}
	if len(expiring) == 0 {
		s.log.Info("no expiring subscriptions found")
		return
	}
	s.log.Info("found expiring subscriptions", slog.Int("count", len(expiring)))

	for _, item := range expiring {
		if err := s.publish(channel, rabbitmq.Exchange, rabbitmq.RoutingKeyReminder, item); err != nil {
			s.log.Error("failed to publish reminder", sl.Err(err),
				slog.Int("subscription_id", item.SubscriptionID))
			scanErrors.Inc()
			continue
		}
		remindersPublished.Inc()
	}
}

// RunDowngradeScan expires every active subscription past its period end
// and replaces it with a one-year free-plan row, one transaction per
// subscription. Per-row failures are logged and the scan continues.
func (s *SchedulerService) RunDowngradeScan(ctx context.Context) {
	conn, locked, err := s.repo.TryAdvisoryLock(ctx, repository.DowngradeScanLockKey)
	if err != nil {
		s.log.Error("failed to take scheduler lock", sl.Err(err))
		return
	}
	if !locked {
		s.log.Info("downgrade scan already running elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.repo.AdvisoryUnlock(ctx, conn, repository.DowngradeScanLockKey); err != nil {
			s.log.Error("failed to release scheduler lock", sl.Err(err))
		}
	}()

	s.log.Info("starting downgrade scan")
	freePlan, err := s.repo.GetPlanByName(ctx, subscription.PlanFree)
	if err != nil {
		s.log.Error("failed to load free plan", sl.Err(err))
		scanErrors.Inc()
		return
	}

	expired, err := s.repo.FindExpired(ctx)
	if err != nil {
		s.log.Error("failed to find expired subscriptions", sl.Err(err))
		scanErrors.Inc()
		return
	}
	if len(expired) == 0 {
		s.log.Info("no expired subscriptions found")
		return
	}
	s.log.Info("found expired subscriptions", slog.Int("count", len(expired)))

	for _, sub := range expired {
		periodEnd := time.Now().AddDate(1, 0, 0)
		err := s.repo.DowngradeToFreeTx(ctx, sub.ID, sub.UserUID, sub.PlanID, freePlan.ID, periodEnd)
		if err != nil {
			s.log.Error("failed to downgrade subscription", sl.Err(err),
				slog.Int("subscription_id", sub.ID))
			scanErrors.Inc()
			continue
		}
		downgradesApplied.Inc()
		s.log.Info("subscription downgraded to free",
			slog.Int("subscription_id", sub.ID),
			slog.String("user_uid", sub.UserUID))
	}
}
