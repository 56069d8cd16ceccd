// Package services contains the crypto portfolio logic: holdings and
// their valuation against the market-data feed.
package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/traderoom/trading-academy/internal/lib/sl"
	"github.com/traderoom/trading-academy/internal/models"
)

// PortfolioRepository defines the storage methods of the portfolio.
type PortfolioRepository interface {
	UpsertHolding(ctx context.Context, h models.Holding) (int, error)
	RemoveHolding(ctx context.Context, userUID, asset string) (int, error)
	ListHoldings(ctx context.Context, userUID string) ([]*models.Holding, error)
}

// PriceSource fetches spot prices per asset symbol.
type PriceSource interface {
	GetPrices(ctx context.Context, assets []string) (map[string]float64, error)
}

// Cache describes the methods used to cache fetched prices.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Valuation is a priced portfolio.
type Valuation struct {
	Holdings   []models.HoldingValuation `json:"holdings"`
	TotalValue float64                   `json:"total_value"`
	Currency   string                    `json:"currency"`
}

// PortfolioService implements the portfolio operations.
type PortfolioService struct {
	repo     PortfolioRepository
	prices   PriceSource
	cache    Cache
	currency string
	priceTTL time.Duration
	log      *slog.Logger
}

// NewPortfolioService creates a new PortfolioService.
func NewPortfolioService(repo PortfolioRepository, prices PriceSource, cache Cache, currency string, priceTTL time.Duration, log *slog.Logger) *PortfolioService {
	return &PortfolioService{
		repo:     repo,
		prices:   prices,
		cache:    cache,
		currency: currency,
		priceTTL: priceTTL,
		log:      log,
	}
}

// SetHolding creates or replaces one position. The asset symbol is
// upper-cased so "btc" and "BTC" address the same row.
func (s *PortfolioService) SetHolding(ctx context.Context, userUID string, req models.DummyHolding) (int, error) {
	return s.repo.UpsertHolding(ctx, models.Holding{
		UserUID: userUID,
		Asset:   strings.ToUpper(req.Asset),
		Amount:  req.Amount,
	})
}

// RemoveHolding deletes one position and returns the deleted count.
func (s *PortfolioService) RemoveHolding(ctx context.Context, userUID, asset string) (int, error) {
	return s.repo.RemoveHolding(ctx, userUID, asset)
}

// ListHoldings returns the user's raw positions.
func (s *PortfolioService) ListHoldings(ctx context.Context, userUID string) ([]*models.Holding, error) {
	return s.repo.ListHoldings(ctx, userUID)
}

// Value prices the user's holdings with the market-data feed. Prices
// are cached briefly so repeated valuations do not hammer the feed.
// Assets the feed does not know are returned with a zero price.
func (s *PortfolioService) Value(ctx context.Context, userUID string) (*Valuation, error) {
	holdings, err := s.repo.ListHoldings(ctx, userUID)
	if err != nil {
		return nil, err
	}

	assets := make([]string, 0, len(holdings))
	for _, h := range holdings {
		assets = append(assets, h.Asset)
	}
	prices, err := s.getPrices(ctx, assets)
	if err != nil {
		return nil, err
	}

	result := &Valuation{
		Holdings: make([]models.HoldingValuation, 0, len(holdings)),
		Currency: s.currency,
	}
	for _, h := range holdings {
		price := prices[h.Asset]
		value := price * h.Amount
		result.Holdings = append(result.Holdings, models.HoldingValuation{
			Asset:  h.Asset,
			Amount: h.Amount,
			Price:  price,
			Value:  value,
		})
		result.TotalValue += value
	}
	return result, nil
}

func (s *PortfolioService) getPrices(ctx context.Context, assets []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(assets))
	var missing []string
	for _, asset := range assets {
		var price float64
		found, err := s.cache.Get("price:"+asset, &price)
		if err != nil {
			s.log.Warn("price cache read failed", sl.Err(err))
		}
		if found {
			prices[asset] = price
		} else {
			missing = append(missing, asset)
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := s.prices.GetPrices(ctx, missing)
	if err != nil {
		return nil, err
	}
	for asset, price := range fetched {
		prices[asset] = price
		if err := s.cache.Set("price:"+asset, price, s.priceTTL); err != nil {
			s.log.Warn("price cache write failed", sl.Err(err))
		}
	}
	return prices, nil
}
