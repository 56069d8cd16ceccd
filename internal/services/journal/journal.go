// Package services contains the trading journal logic: trade records
// and the derived performance metrics.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
)

// ErrInvalidPeriod is returned when a metrics period is neither "all"
// nor a YYYY-MM month.
var ErrInvalidPeriod = errors.New("invalid metrics period")

// ErrInvalidTradeDates is returned when a trade closes before it opens.
var ErrInvalidTradeDates = errors.New("closed_at must not be earlier than opened_at")

// ErrInvalidDateFormat is returned when a trade date is not dd-mm-yyyy.
var ErrInvalidDateFormat = errors.New("dates must use the dd-mm-yyyy format")

const (
	dateLayout   = "02-01-2006"
	periodLayout = "2006-01"
	metricsTTL   = 15 * time.Minute
)

// JournalRepository defines the storage methods of the journal.
type JournalRepository interface {
	CreateTrade(ctx context.Context, trade models.Trade) (int, error)
	RemoveTrade(ctx context.Context, id int, userUID string) (int, error)
	ListTrades(ctx context.Context, userUID string, limit, offset int) ([]*models.Trade, error)
	ListClosedTrades(ctx context.Context, userUID string, from, to time.Time) ([]*models.Trade, error)
	UpsertMetrics(ctx context.Context, m models.PerformanceMetrics) error
}

// Cache describes the methods used to cache computed metrics.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// JournalService implements trade CRUD and metrics computation.
type JournalService struct {
	repo  JournalRepository
	cache Cache
	log   *slog.Logger
}

// NewJournalService creates a new JournalService.
func NewJournalService(repo JournalRepository, cache Cache, log *slog.Logger) *JournalService {
	return &JournalService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// AddTrade parses and stores one trade. P&L is computed here for closed
// trades so storage holds the settled number.
func (s *JournalService) AddTrade(ctx context.Context, userUID string, req models.DummyTrade) (int, error) {
	openedAt, err := time.Parse(dateLayout, req.OpenedAt)
	if err != nil {
		return 0, fmt.Errorf("%w: opened_at %q", ErrInvalidDateFormat, req.OpenedAt)
	}

	trade := models.Trade{
		UserUID:    userUID,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		Size:       req.Size,
		StopPrice:  req.StopPrice,
		OpenedAt:   openedAt,
		Notes:      req.Notes,
	}
	if req.ClosedAt != "" {
		closedAt, err := time.Parse(dateLayout, req.ClosedAt)
		if err != nil {
			return 0, fmt.Errorf("%w: closed_at %q", ErrInvalidDateFormat, req.ClosedAt)
		}
		if closedAt.Before(openedAt) {
			return 0, ErrInvalidTradeDates
		}
		trade.ClosedAt = &closedAt
		trade.PnL = TradePnL(req.Direction, req.EntryPrice, req.ExitPrice, req.Size)
	}

	id, err := s.repo.CreateTrade(ctx, trade)
	if err != nil {
		return 0, err
	}
	s.invalidateMetrics(userUID)
	s.log.Info("trade recorded", slog.Int("id", id), slog.String("symbol", req.Symbol))
	return id, nil
}

// RemoveTrade deletes one trade of the user and returns the deleted count.
func (s *JournalService) RemoveTrade(ctx context.Context, userUID string, id int) (int, error) {
	count, err := s.repo.RemoveTrade(ctx, id, userUID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.invalidateMetrics(userUID)
	}
	return count, nil
}

// ListTrades returns the user's trades, newest first.
func (s *JournalService) ListTrades(ctx context.Context, userUID string, limit, offset int) ([]*models.Trade, error) {
	return s.repo.ListTrades(ctx, userUID, limit, offset)
}

// Metrics computes the user's performance numbers for one period ("all"
// or a YYYY-MM month) over closed trades, caches the result and keeps
// the journal_metrics row current.
func (s *JournalService) Metrics(ctx context.Context, userUID, period string) (*models.PerformanceMetrics, error) {
	from, to, err := periodBounds(period)
	if err != nil {
		return nil, err
	}

	cacheKey := metricsKey(userUID, period)
	var cached models.PerformanceMetrics
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("metrics cache read failed", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	trades, err := s.repo.ListClosedTrades(ctx, userUID, from, to)
	if err != nil {
		return nil, err
	}

	metrics := ComputeMetrics(trades)
	metrics.UserUID = userUID
	metrics.Period = period
	metrics.ComputedAt = time.Now()

	if err := s.repo.UpsertMetrics(ctx, metrics); err != nil {
		s.log.Warn("failed to persist metrics", sl.Err(err))
	}
	if err := s.cache.Set(cacheKey, metrics, metricsTTL); err != nil {
		s.log.Warn("metrics cache write failed", sl.Err(err))
	}
	return &metrics, nil
}

// TradePnL is the settled profit of one closed trade.
func TradePnL(direction string, entry, exit, size float64) float64 {
	if direction == "short" {
		return (entry - exit) * size
	}
	return (exit - entry) * size
}

// ComputeMetrics derives the performance numbers from closed trades.
// Trades must be ordered by close time for the drawdown to be correct.
func ComputeMetrics(trades []*models.Trade) models.PerformanceMetrics {
	var m models.PerformanceMetrics
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return m
	}

	var wins, losses int
	var grossProfit, grossLoss float64
	var cumulative, peak, maxDrawdown float64
	for _, trade := range trades {
		if trade.PnL > 0 {
			wins++
			grossProfit += trade.PnL
		} else if trade.PnL < 0 {
			losses++
			grossLoss += -trade.PnL
		}

		cumulative += trade.PnL
		if cumulative > peak {
			peak = cumulative
		}
		if drawdown := peak - cumulative; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	m.WinRate = float64(wins) / float64(len(trades))
	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = grossLoss / float64(losses)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else {
		// no losing trades: report gross profit as the factor
		m.ProfitFactor = grossProfit
	}
	m.MaxDrawdown = maxDrawdown
	return m
}

func periodBounds(period string) (time.Time, time.Time, error) {
	if period == "all" {
		return time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
	start, err := time.Parse(periodLayout, period)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return start, start.AddDate(0, 1, 0), nil
}

func metricsKey(userUID, period string) string {
	return fmt.Sprintf("journal:metrics:%s:%s", userUID, period)
}

func (s *JournalService) invalidateMetrics(userUID string) {
	// the "all" key is the common read; month keys expire on their own
	if err := s.cache.Invalidate(metricsKey(userUID, "all")); err != nil {
		s.log.Warn("metrics cache invalidation failed", sl.Err(err))
	}
}
