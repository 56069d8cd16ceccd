package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindExpiringWithin(ctx context.Context, window time.Duration) ([]*models.ExpiringSubscription, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ExpiringSubscription), args.Error(1)
}

func (m *MockRepository) FindExpired(ctx context.Context) ([]*models.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockRepository) DowngradeToFreeTx(ctx context.Context, subID int, userUID string, fromPlanID, freePlanID int, periodEnd time.Time) error {
	args := m.Called(ctx, subID, userUID, fromPlanID, freePlanID, periodEnd)
	return args.Error(0)
}

func (m *MockRepository) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockRepository) TryAdvisoryLock(ctx context.Context, key int64) (*sql.Conn, bool, error) {
	args := m.Called(ctx, key)
	return nil, args.Bool(1), args.Error(2)
}

func (m *MockRepository) AdvisoryUnlock(ctx context.Context, conn *sql.Conn, key int64) error {
	args := m.Called(ctx, conn, key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *MockRepository, published *[]any) *SchedulerService {
	service := NewSchedulerService(repo, newNoopLogger())
	service.publish = func(_ *amqp.Channel, _, _ string, message any) error {
		*published = append(*published, message)
		return nil
	}
	return service
}

func TestSchedulerService_RunReminderScan(t *testing.T) {
	expiring := &models.ExpiringSubscription{
		SubscriptionID:  7,
		Email:           "trader@example.com",
		Username:        "trader",
		PlanDisplayName: "Premium",
		PeriodEnd:       time.Now().Add(5 * 24 * time.Hour),
	}

	tests := []struct {
		name          string
		setupMocks    func(*MockRepository)
		wantPublished int
	}{
		{
			name: "publishes one reminder per expiring subscription",
			setupMocks: func(r *MockRepository) {
				r.On("TryAdvisoryLock", mock.Anything, repository.ReminderScanLockKey).Return(nil, true, nil).Once()
				r.On("FindExpiringWithin", mock.Anything, ReminderWindow).
					Return([]*models.ExpiringSubscription{expiring}, nil).Once()
				r.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantPublished: 1,
		},
		{
			name: "nothing expiring",
			setupMocks: func(r *MockRepository) {
				r.On("TryAdvisoryLock", mock.Anything, repository.ReminderScanLockKey).Return(nil, true, nil).Once()
				r.On("FindExpiringWithin", mock.Anything, ReminderWindow).
					Return([]*models.ExpiringSubscription{}, nil).Once()
				r.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantPublished: 0,
		},
		{
			name: "lock held elsewhere skips the scan",
			setupMocks: func(r *MockRepository) {
				r.On("TryAdvisoryLock", mock.Anything, repository.ReminderScanLockKey).Return(nil, false, nil).Once()
			},
			wantPublished: 0,
		},
		{
			name: "repository error logs and returns",
			setupMocks: func(r *MockRepository) {
				r.On("TryAdvisoryLock", mock.Anything, repository.ReminderScanLockKey).Return(nil, true, nil).Once()
				r.On("FindExpiringWithin", mock.Anything, ReminderWindow).
					Return(nil, errors.New("db error")).Once()
				r.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
			wantPublished: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			var published []any
			service := newTestService(repo, &published)

			tt.setupMocks(repo)
			service.RunReminderScan(context.Background(), nil)

			assert.Len(t, published, tt.wantPublished)
			repo.AssertExpectations(t)
		})
	}
}

// Reminders are not deduplicated: the same row inside the window gets a
// reminder on every scan.
func TestSchedulerService_RunReminderScanTwicePublishesTwice(t *testing.T) {
	expiring := &models.ExpiringSubscription{
		SubscriptionID:  7,
		Email:           "trader@example.com",
		Username:        "trader",
		PlanDisplayName: "Premium",
		PeriodEnd:       time.Now().Add(5 * 24 * time.Hour),
	}

	repo := new(MockRepository)
	var published []any
	service := newTestService(repo, &published)

	repo.On("TryAdvisoryLock", mock.Anything, repository.ReminderScanLockKey).Return(nil, true, nil).Twice()
	repo.On("FindExpiringWithin", mock.Anything, ReminderWindow).
		Return([]*models.ExpiringSubscription{expiring}, nil).Twice()
	repo.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	service.RunReminderScan(context.Background(), nil)
	service.RunReminderScan(context.Background(), nil)

	assert.Len(t, published, 2)
	repo.AssertExpectations(t)
}

func TestSchedulerService_ReminderCarriesUserAndPlan(t *testing.T) {
	expiring := &models.ExpiringSubscription{
		SubscriptionID:  12,
		Email:           "premium-user@example.com",
		Username:        "premiumuser",
		PlanDisplayName: "Premium",
		PeriodEnd:       time.Now().Add(5 * 24 * time.Hour),
	}

	repo := new(MockRepository)
	var published []any
	service := newTestService(repo, &published)

	repo.On("TryAdvisoryLock", mock.Anything, repository.ReminderScanLockKey).Return(nil, true, nil).Once()
	repo.On("FindExpiringWithin", mock.Anything, ReminderWindow).
		Return([]*models.ExpiringSubscription{expiring}, nil).Once()
	repo.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	service.RunReminderScan(context.Background(), nil)

	if assert.Len(t, published, 1) {
		msg, ok := published[0].(*models.ExpiringSubscription)
		if assert.True(t, ok) {
			assert.Equal(t, "premium-user@example.com", msg.Email)
			assert.Equal(t, "Premium", msg.PlanDisplayName)
		}
	}
	repo.AssertExpectations(t)
}

func TestSchedulerService_RunDowngradeScan(t *testing.T) {
	periodEnd := time.Now().Add(-time.Hour)
	expired := &models.Subscription{
		ID:        3,
		UserUID:   "user-1",
		PlanID:    4,
		Status:    "active",
		PeriodEnd: &periodEnd,
	}
	freePlan := &models.Plan{ID: 1, Name: "free"}

	tests := []struct {
		name       string
		setupMocks func(*MockRepository)
	}{
		{
			name: "expired subscription downgraded in one transaction",
			setupMocks: func(r *MockRepository) {
				r.On("TryAdvisoryLock", mock.Anything, repository.DowngradeScanLockKey).Return(nil, true, nil).Once()
				r.On("GetPlanByName", mock.Anything, "free").Return(freePlan, nil).Once()
				r.On("FindExpired", mock.Anything).Return([]*models.Subscription{expired}, nil).Once()
				r.On("DowngradeToFreeTx", mock.Anything, 3, "user-1", 4, 1, mock.AnythingOfType("time.Time")).
					Return(nil).Once()
				r.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "per-row failure does not abort the scan",
			setupMocks: func(r *MockRepository) {
				other := &models.Subscription{ID: 9, UserUID: "user-2", PlanID: 2, Status: "active"}
				r.On("TryAdvisoryLock", mock.Anything, repository.DowngradeScanLockKey).Return(nil, true, nil).Once()
				r.On("GetPlanByName", mock.Anything, "free").Return(freePlan, nil).Once()
				r.On("FindExpired", mock.Anything).Return([]*models.Subscription{expired, other}, nil).Once()
				r.On("DowngradeToFreeTx", mock.Anything, 3, "user-1", 4, 1, mock.AnythingOfType("time.Time")).
					Return(errors.New("already processed")).Once()
				r.On("DowngradeToFreeTx", mock.Anything, 9, "user-2", 2, 1, mock.AnythingOfType("time.Time")).
					Return(nil).Once()
				r.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "nothing expired",
			setupMocks: func(r *MockRepository) {
				r.On("TryAdvisoryLock", mock.Anything, repository.DowngradeScanLockKey).Return(nil, true, nil).Once()
				r.On("GetPlanByName", mock.Anything, "free").Return(freePlan, nil).Once()
				r.On("FindExpired", mock.Anything).Return([]*models.Subscription{}, nil).Once()
				r.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "lock held elsewhere skips the scan",
			setupMocks: func(r *MockRepository) {
				r.On("TryAdvisoryLock", mock.Anything, repository.DowngradeScanLockKey).Return(nil, false, nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			service := NewSchedulerService(repo, newNoopLogger())

			tt.setupMocks(repo)
			service.RunDowngradeScan(context.Background())

			repo.AssertExpectations(t)
		})
	}
}

// The replacement free-plan row must run for about a year.
func TestSchedulerService_DowngradePeriodIsOneYear(t *testing.T) {
	periodEnd := time.Now().Add(-time.Hour)
	expired := &models.Subscription{ID: 3, UserUID: "user-1", PlanID: 4, Status: "active", PeriodEnd: &periodEnd}
	freePlan := &models.Plan{ID: 1, Name: "free"}

	repo := new(MockRepository)
	service := NewSchedulerService(repo, newNoopLogger())

	var gotPeriodEnd time.Time
	repo.On("TryAdvisoryLock", mock.Anything, repository.DowngradeScanLockKey).Return(nil, true, nil).Once()
	repo.On("GetPlanByName", mock.Anything, "free").Return(freePlan, nil).Once()
	repo.On("FindExpired", mock.Anything).Return([]*models.Subscription{expired}, nil).Once()
	repo.On("DowngradeToFreeTx", mock.Anything, 3, "user-1", 4, 1, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			gotPeriodEnd = args.Get(5).(time.Time)
		}).Return(nil).Once()
	repo.On("AdvisoryUnlock", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	service.RunDowngradeScan(context.Background())

	expected := time.Now().AddDate(1, 0, 0)
	assert.WithinDuration(t, expected, gotPeriodEnd, time.Minute)
	repo.AssertExpectations(t)
}

// Each scan holds its own lock so a long reminder scan never delays a
// due downgrade scan.
func TestSchedulerService_ScansUseDistinctLockKeys(t *testing.T) {
	assert.NotEqual(t, repository.ReminderScanLockKey, repository.DowngradeScanLockKey)
}
