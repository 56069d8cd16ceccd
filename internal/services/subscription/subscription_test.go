package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/traderoom/trading-academy/internal/models"
	"github.com/traderoom/trading-academy/internal/paymentprovider"
	"github.com/traderoom/trading-academy/internal/subscription"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *MockRepository) GetPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockRepository) GetPlanByID(ctx context.Context, id int) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockRepository) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetSubscription(ctx context.Context, id int) (*models.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) GetActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) GetSubscriptionByReference(ctx context.Context, reference string) (*models.Subscription, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) UpdateSubscriptionStatus(ctx context.Context, id int, from, to subscription.Status) (int, error) {
	args := m.Called(ctx, id, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ActivateSubscriptionTx(ctx context.Context, subID int, periodStart time.Time, periodEnd *time.Time, hist models.HistoryEntry) error {
	args := m.Called(ctx, subID, periodStart, periodEnd, hist)
	return args.Error(0)
}

func (m *MockRepository) CancelSubscriptionTx(ctx context.Context, subID int, hist models.HistoryEntry) error {
	args := m.Called(ctx, subID, hist)
	return args.Error(0)
}

func (m *MockRepository) CreateHistoryEntry(ctx context.Context, hist models.HistoryEntry) (int, error) {
	args := m.Called(ctx, hist)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.HistoryEntry, error) {
	args := m.Called(ctx, userUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HistoryEntry), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

type stubProvider struct {
	name     string
	initiate func(ctx context.Context, req paymentprovider.ChargeRequest) (*paymentprovider.ChargeResult, error)
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Initiate(ctx context.Context, req paymentprovider.ChargeRequest) (*paymentprovider.ChargeResult, error) {
	return p.initiate(ctx, req)
}

func (p *stubProvider) Verify(context.Context, string) (paymentprovider.Status, error) {
	return paymentprovider.StatusPending, nil
}

func (p *stubProvider) VerifySignature([]byte, http.Header) error { return nil }

func (p *stubProvider) ParseEvent([]byte) (*paymentprovider.Event, error) { return nil, nil }

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *MockRepository, cache *MockCache, providers map[string]paymentprovider.Provider) *SubscriptionService {
	return NewSubscriptionService(repo, cache, providers, "http://localhost:8080", newNoopLogger())
}

func TestSubscriptionService_Checkout(t *testing.T) {
	premium := &models.Plan{ID: 3, Name: "premium", DisplayName: "Premium", Price: 29.99, Currency: "USD", BillingCycle: "monthly"}
	free := &models.Plan{ID: 1, Name: "free", DisplayName: "Free", Price: 0, Currency: "USD", BillingCycle: "yearly"}
	user := &models.User{UID: "user-1", Email: "trader@example.com", Username: "trader"}

	t.Run("opens a pending subscription with the provider reference", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		provider := &stubProvider{
			name: "stripe",
			initiate: func(_ context.Context, req paymentprovider.ChargeRequest) (*paymentprovider.ChargeResult, error) {
				assert.Equal(t, 29.99, req.Amount)
				assert.Equal(t, "trader@example.com", req.CustomerEmail)
				return &paymentprovider.ChargeResult{
					Reference:   "cs_test_1",
					CheckoutURL: "https://pay.example/cs_test_1",
					Status:      paymentprovider.StatusPending,
				}, nil
			},
		}
		service := newTestService(repo, cache, map[string]paymentprovider.Provider{"stripe": provider})

		repo.On("GetPlanByName", mock.Anything, "premium").Return(premium, nil).Once()
		repo.On("GetUser", mock.Anything, "user-1").Return(user, nil).Once()
		repo.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
			return sub.Status == "pending" && sub.PaymentReference == "cs_test_1" && sub.PlanID == 3
		})).Return(42, nil).Once()

		result, err := service.Checkout(context.Background(), "user-1", models.DummyCheckout{
			PlanName:      "premium",
			PaymentMethod: "stripe",
		})

		require.NoError(t, err)
		assert.Equal(t, 42, result.SubscriptionID)
		assert.Equal(t, "https://pay.example/cs_test_1", result.CheckoutURL)
		repo.AssertExpectations(t)
	})

	t.Run("free plan is rejected", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := newTestService(repo, cache, map[string]paymentprovider.Provider{})

		repo.On("GetPlanByName", mock.Anything, "free").Return(free, nil).Once()

		_, err := service.Checkout(context.Background(), "user-1", models.DummyCheckout{
			PlanName:      "free",
			PaymentMethod: "stripe",
		})

		assert.ErrorIs(t, err, ErrFreePlanCheckout)
		repo.AssertExpectations(t)
	})

	t.Run("unknown payment method is rejected", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := newTestService(repo, cache, map[string]paymentprovider.Provider{})

		repo.On("GetPlanByName", mock.Anything, "premium").Return(premium, nil).Once()

		_, err := service.Checkout(context.Background(), "user-1", models.DummyCheckout{
			PlanName:      "premium",
			PaymentMethod: "paypal",
		})

		assert.ErrorIs(t, err, ErrUnknownPaymentMethod)
		repo.AssertExpectations(t)
	})
}

func TestSubscriptionService_Activate(t *testing.T) {
	premium := &models.Plan{ID: 3, Name: "premium", BillingCycle: "monthly"}
	elite := &models.Plan{ID: 4, Name: "elite", BillingCycle: "lifetime"}

	t.Run("pending subscription becomes active with a monthly period", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		pending := &models.Subscription{ID: 42, UserUID: "user-1", PlanID: 3, Status: "pending"}
		repo.On("GetSubscriptionByReference", mock.Anything, "cs_test_1").Return(pending, nil).Once()
		repo.On("GetPlanByID", mock.Anything, 3).Return(premium, nil).Once()
		repo.On("GetActiveSubscription", mock.Anything, "user-1").Return(nil, errors.New("not found")).Once()
		repo.On("ActivateSubscriptionTx", mock.Anything, 42, mock.AnythingOfType("time.Time"),
			mock.MatchedBy(func(end *time.Time) bool {
				if end == nil {
					return false
				}
				expected := time.Now().AddDate(0, 1, 0)
				return end.Sub(expected).Abs() < time.Minute
			}),
			mock.MatchedBy(func(hist models.HistoryEntry) bool {
				return hist.ActionType == subscription.ActionPayment && hist.Amount == 29.99
			})).Return(nil).Once()

		err := service.Activate(context.Background(), "cs_test_1", 29.99, "USD")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("lifetime plan has no period end", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		pending := &models.Subscription{ID: 43, UserUID: "user-1", PlanID: 4, Status: "pending"}
		repo.On("GetSubscriptionByReference", mock.Anything, "inv_1").Return(pending, nil).Once()
		repo.On("GetPlanByID", mock.Anything, 4).Return(elite, nil).Once()
		repo.On("GetActiveSubscription", mock.Anything, "user-1").Return(nil, errors.New("not found")).Once()
		repo.On("ActivateSubscriptionTx", mock.Anything, 43, mock.AnythingOfType("time.Time"),
			(*time.Time)(nil), mock.AnythingOfType("models.HistoryEntry")).Return(nil).Once()

		err := service.Activate(context.Background(), "inv_1", 499, "USD")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("replayed confirmation on an active subscription is a no-op", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		active := &models.Subscription{ID: 42, UserUID: "user-1", PlanID: 3, Status: "active"}
		repo.On("GetSubscriptionByReference", mock.Anything, "cs_test_1").Return(active, nil).Once()

		err := service.Activate(context.Background(), "cs_test_1", 29.99, "USD")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("activating a failed subscription is an invalid transition", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		failed := &models.Subscription{ID: 42, UserUID: "user-1", PlanID: 3, Status: "failed"}
		repo.On("GetSubscriptionByReference", mock.Anything, "cs_test_1").Return(failed, nil).Once()

		err := service.Activate(context.Background(), "cs_test_1", 29.99, "USD")

		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
		repo.AssertExpectations(t)
	})

	t.Run("same plan again is recorded as renewal", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		pending := &models.Subscription{ID: 44, UserUID: "user-1", PlanID: 3, Status: "pending"}
		current := &models.Subscription{ID: 40, UserUID: "user-1", PlanID: 3, Status: "active"}
		repo.On("GetSubscriptionByReference", mock.Anything, "cs_test_2").Return(pending, nil).Once()
		repo.On("GetPlanByID", mock.Anything, 3).Return(premium, nil).Once()
		repo.On("GetActiveSubscription", mock.Anything, "user-1").Return(current, nil).Once()
		repo.On("ActivateSubscriptionTx", mock.Anything, 44, mock.AnythingOfType("time.Time"),
			mock.AnythingOfType("*time.Time"),
			mock.MatchedBy(func(hist models.HistoryEntry) bool {
				return hist.ActionType == subscription.ActionRenewal
			})).Return(nil).Once()

		err := service.Activate(context.Background(), "cs_test_2", 29.99, "USD")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestSubscriptionService_Fail(t *testing.T) {
	t.Run("pending subscription is marked failed", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		pending := &models.Subscription{ID: 42, Status: "pending"}
		repo.On("GetSubscriptionByReference", mock.Anything, "cs_test_1").Return(pending, nil).Once()
		repo.On("UpdateSubscriptionStatus", mock.Anything, 42,
			subscription.StatusPending, subscription.StatusFailed).Return(1, nil).Once()

		err := service.Fail(context.Background(), "cs_test_1")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("already settled subscription is left alone", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		active := &models.Subscription{ID: 42, Status: "active"}
		repo.On("GetSubscriptionByReference", mock.Anything, "cs_test_1").Return(active, nil).Once()

		err := service.Fail(context.Background(), "cs_test_1")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestSubscriptionService_Cancel(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, new(MockCache), nil)

	active := &models.Subscription{ID: 42, UserUID: "user-1", PlanID: 3, Status: "active"}
	repo.On("GetActiveSubscription", mock.Anything, "user-1").Return(active, nil).Once()
	repo.On("CancelSubscriptionTx", mock.Anything, 42, mock.MatchedBy(func(hist models.HistoryEntry) bool {
		return hist.ActionType == subscription.ActionCancellation && hist.ToPlanID == 3
	})).Return(nil).Once()

	err := service.Cancel(context.Background(), "user-1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSubscriptionService_StartFree(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, new(MockCache), nil)

	free := &models.Plan{ID: 1, Name: "free", Currency: "USD"}
	repo.On("GetPlanByName", mock.Anything, "free").Return(free, nil).Once()
	repo.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
		if sub.Status != "active" || sub.PlanID != 1 || sub.PeriodEnd == nil {
			return false
		}
		expected := time.Now().AddDate(1, 0, 0)
		return sub.PeriodEnd.Sub(expected).Abs() < time.Minute
	})).Return(7, nil).Once()
	repo.On("CreateHistoryEntry", mock.Anything, mock.MatchedBy(func(hist models.HistoryEntry) bool {
		return hist.ActionType == subscription.ActionPayment && hist.Amount == 0
	})).Return(1, nil).Once()

	id, err := service.StartFree(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 7, id)
	repo.AssertExpectations(t)
}

func TestSubscriptionService_AdminSetStatus(t *testing.T) {
	t.Run("allowed transition is applied", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		active := &models.Subscription{ID: 42, Status: "active"}
		repo.On("GetSubscription", mock.Anything, 42).Return(active, nil).Once()
		repo.On("UpdateSubscriptionStatus", mock.Anything, 42,
			subscription.StatusActive, subscription.StatusCancelled).Return(1, nil).Once()

		err := service.AdminSetStatus(context.Background(), 42, subscription.StatusCancelled)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("terminal state cannot be overridden", func(t *testing.T) {
		repo := new(MockRepository)
		service := newTestService(repo, new(MockCache), nil)

		expired := &models.Subscription{ID: 42, Status: "expired"}
		repo.On("GetSubscription", mock.Anything, 42).Return(expired, nil).Once()

		err := service.AdminSetStatus(context.Background(), 42, subscription.StatusActive)

		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
		repo.AssertExpectations(t)
	})
}

func TestSubscriptionService_ListPlans(t *testing.T) {
	plans := []*models.Plan{{ID: 1, Name: "free"}, {ID: 2, Name: "pro"}}

	t.Run("cache miss loads from repository and fills the cache", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := newTestService(repo, cache, nil)

		cache.On("Get", planCatalogKey, mock.Anything).Return(false, nil).Once()
		repo.On("ListPlans", mock.Anything).Return(plans, nil).Once()
		cache.On("Set", planCatalogKey, plans, time.Hour).Return(nil).Once()

		got, err := service.ListPlans(context.Background())

		require.NoError(t, err)
		assert.Len(t, got, 2)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache hit skips the repository", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := newTestService(repo, cache, nil)

		cache.On("Get", planCatalogKey, mock.Anything).Return(true, nil).Once()

		_, err := service.ListPlans(context.Background())

		require.NoError(t, err)
		repo.AssertNotCalled(t, "ListPlans")
		cache.AssertExpectations(t)
	})
}
