package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/traderoom/trading-academy/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTrade(ctx context.Context, trade models.Trade) (int, error) {
	args := m.Called(ctx, trade)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) RemoveTrade(ctx context.Context, id int, userUID string) (int, error) {
	args := m.Called(ctx, id, userUID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListTrades(ctx context.Context, userUID string, limit, offset int) ([]*models.Trade, error) {
	args := m.Called(ctx, userUID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Trade), args.Error(1)
}

func (m *MockRepository) ListClosedTrades(ctx context.Context, userUID string, from, to time.Time) ([]*models.Trade, error) {
	args := m.Called(ctx, userUID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Trade), args.Error(1)
}

func (m *MockRepository) UpsertMetrics(ctx context.Context, metrics models.PerformanceMetrics) error {
	args := m.Called(ctx, metrics)
	return args.Error(0)
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

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func closedTrade(pnl float64) *models.Trade {
	closed := time.Now()
	return &models.Trade{PnL: pnl, ClosedAt: &closed}
}

func TestTradePnL(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		entry     float64
		exit      float64
		size      float64
		want      float64
	}{
		{name: "long winner", direction: "long", entry: 100, exit: 110, size: 2, want: 20},
		{name: "long loser", direction: "long", entry: 100, exit: 95, size: 2, want: -10},
		{name: "short winner", direction: "short", entry: 100, exit: 90, size: 3, want: 30},
		{name: "short loser", direction: "short", entry: 100, exit: 105, size: 3, want: -15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TradePnL(tt.direction, tt.entry, tt.exit, tt.size), 0.0001)
		})
	}
}

func TestComputeMetrics(t *testing.T) {
	t.Run("no trades", func(t *testing.T) {
		m := ComputeMetrics(nil)
		assert.Equal(t, 0, m.TotalTrades)
		assert.Zero(t, m.WinRate)
		assert.Zero(t, m.MaxDrawdown)
	})

	t.Run("mixed trades", func(t *testing.T) {
		trades := []*models.Trade{
			closedTrade(100),
			closedTrade(-50),
			closedTrade(200),
			closedTrade(-25),
		}
		m := ComputeMetrics(trades)

		assert.Equal(t, 4, m.TotalTrades)
		assert.InDelta(t, 0.5, m.WinRate, 0.0001)
		assert.InDelta(t, 150, m.AvgWin, 0.0001)   // (100+200)/2
		assert.InDelta(t, 37.5, m.AvgLoss, 0.0001) // (50+25)/2
		assert.InDelta(t, 4.0, m.ProfitFactor, 0.0001)
		assert.InDelta(t, 50, m.MaxDrawdown, 0.0001) // peak 100, trough 50
	})

	t.Run("drawdown tracks the running peak", func(t *testing.T) {
		// cumulative: 100, 300, 50, 150 — deepest fall from peak 300 to 50
		trades := []*models.Trade{
			closedTrade(100),
			closedTrade(200),
			closedTrade(-250),
			closedTrade(100),
		}
		m := ComputeMetrics(trades)
		assert.InDelta(t, 250, m.MaxDrawdown, 0.0001)
	})

	t.Run("only winners reports gross profit as the factor", func(t *testing.T) {
		trades := []*models.Trade{closedTrade(100), closedTrade(50)}
		m := ComputeMetrics(trades)
		assert.InDelta(t, 1.0, m.WinRate, 0.0001)
		assert.Zero(t, m.AvgLoss)
		assert.InDelta(t, 150, m.ProfitFactor, 0.0001)
		assert.Zero(t, m.MaxDrawdown)
	})

	t.Run("breakeven trades count toward total only", func(t *testing.T) {
		trades := []*models.Trade{closedTrade(0), closedTrade(100)}
		m := ComputeMetrics(trades)
		assert.Equal(t, 2, m.TotalTrades)
		assert.InDelta(t, 0.5, m.WinRate, 0.0001)
	})
}

func TestJournalService_AddTrade(t *testing.T) {
	t.Run("closed trade gets its pnl computed", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := NewJournalService(repo, cache, newNoopLogger())

		repo.On("CreateTrade", mock.Anything, mock.MatchedBy(func(trade models.Trade) bool {
			return trade.PnL == 20 && trade.ClosedAt != nil
		})).Return(5, nil).Once()
		cache.On("Invalidate", "journal:metrics:user-1:all").Return(nil).Once()

		id, err := service.AddTrade(context.Background(), "user-1", models.DummyTrade{
			Symbol:     "BTCUSDT",
			Direction:  "long",
			EntryPrice: 100,
			ExitPrice:  110,
			Size:       2,
			OpenedAt:   "01-06-2026",
			ClosedAt:   "02-06-2026",
		})

		require.NoError(t, err)
		assert.Equal(t, 5, id)
		repo.AssertExpectations(t)
	})

	t.Run("open trade has zero pnl", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := NewJournalService(repo, cache, newNoopLogger())

		repo.On("CreateTrade", mock.Anything, mock.MatchedBy(func(trade models.Trade) bool {
			return trade.PnL == 0 && trade.ClosedAt == nil
		})).Return(6, nil).Once()
		cache.On("Invalidate", "journal:metrics:user-1:all").Return(nil).Once()

		_, err := service.AddTrade(context.Background(), "user-1", models.DummyTrade{
			Symbol:     "ETHUSDT",
			Direction:  "short",
			EntryPrice: 2000,
			Size:       1,
			OpenedAt:   "01-06-2026",
		})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("closed before opened is rejected", func(t *testing.T) {
		repo := new(MockRepository)
		service := NewJournalService(repo, new(MockCache), newNoopLogger())

		_, err := service.AddTrade(context.Background(), "user-1", models.DummyTrade{
			Symbol:     "BTCUSDT",
			Direction:  "long",
			EntryPrice: 100,
			Size:       1,
			OpenedAt:   "10-06-2026",
			ClosedAt:   "01-06-2026",
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTradeDates)
		repo.AssertNotCalled(t, "CreateTrade")
	})

	t.Run("malformed dates are rejected", func(t *testing.T) {
		repo := new(MockRepository)
		service := NewJournalService(repo, new(MockCache), newNoopLogger())

		_, err := service.AddTrade(context.Background(), "user-1", models.DummyTrade{
			Symbol:     "BTCUSDT",
			Direction:  "long",
			EntryPrice: 100,
			Size:       1,
			OpenedAt:   "2026-06-01",
		})
		assert.ErrorIs(t, err, ErrInvalidDateFormat)

		_, err = service.AddTrade(context.Background(), "user-1", models.DummyTrade{
			Symbol:     "BTCUSDT",
			Direction:  "long",
			EntryPrice: 100,
			Size:       1,
			OpenedAt:   "01-06-2026",
			ClosedAt:   "June 2nd",
		})
		assert.ErrorIs(t, err, ErrInvalidDateFormat)
		repo.AssertNotCalled(t, "CreateTrade")
	})
}

func TestJournalService_Metrics(t *testing.T) {
	t.Run("cache miss computes, persists and caches", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := NewJournalService(repo, cache, newNoopLogger())

		trades := []*models.Trade{closedTrade(100), closedTrade(-50)}
		cache.On("Get", "journal:metrics:user-1:all", mock.Anything).Return(false, nil).Once()
		repo.On("ListClosedTrades", mock.Anything, "user-1", mock.Anything, mock.Anything).
			Return(trades, nil).Once()
		repo.On("UpsertMetrics", mock.Anything, mock.MatchedBy(func(m models.PerformanceMetrics) bool {
			return m.UserUID == "user-1" && m.Period == "all" && m.TotalTrades == 2
		})).Return(nil).Once()
		cache.On("Set", "journal:metrics:user-1:all", mock.Anything, metricsTTL).Return(nil).Once()

		metrics, err := service.Metrics(context.Background(), "user-1", "all")

		require.NoError(t, err)
		assert.InDelta(t, 0.5, metrics.WinRate, 0.0001)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache hit skips computation", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := NewJournalService(repo, cache, newNoopLogger())

		cache.On("Get", "journal:metrics:user-1:2026-08", mock.Anything).Return(true, nil).Once()

		_, err := service.Metrics(context.Background(), "user-1", "2026-08")

		require.NoError(t, err)
		repo.AssertNotCalled(t, "ListClosedTrades")
	})

	t.Run("month period bounds the query", func(t *testing.T) {
		repo := new(MockRepository)
		cache := new(MockCache)
		service := NewJournalService(repo, cache, newNoopLogger())

		monthStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		cache.On("Get", mock.Anything, mock.Anything).Return(false, nil).Once()
		repo.On("ListClosedTrades", mock.Anything, "user-1", monthStart, monthStart.AddDate(0, 1, 0)).
			Return([]*models.Trade{}, nil).Once()
		repo.On("UpsertMetrics", mock.Anything, mock.Anything).Return(nil).Once()
		cache.On("Set", mock.Anything, mock.Anything, metricsTTL).Return(nil).Once()

		_, err := service.Metrics(context.Background(), "user-1", "2026-08")

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("garbage period is rejected", func(t *testing.T) {
		service := NewJournalService(new(MockRepository), new(MockCache), newNoopLogger())

		_, err := service.Metrics(context.Background(), "user-1", "august")

		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})
}
