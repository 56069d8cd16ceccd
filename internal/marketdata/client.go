// Package marketdata is the HTTP client for the coin price feed used to
// value portfolio holdings.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// asset symbols map to feed coin IDs; the feed keys prices by coin ID,
// not ticker symbol.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"LTC":   "litecoin",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
}

// Client fetches spot prices from the public price feed.
type Client struct {
	baseURL    string
	currency   string
	httpClient *http.Client
}

// NewClient creates the price-feed client.
func NewClient(baseURL, currency string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		currency:   strings.ToLower(currency),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetPrices returns the spot price per asset symbol. Symbols without a
// known coin ID are left out of the result.
func (c *Client) GetPrices(ctx context.Context, assets []string) (map[string]float64, error) {
	const op = "marketdata.GetPrices"

	ids := make([]string, 0, len(assets))
	bySymbol := make(map[string]string, len(assets))
	for _, asset := range assets {
		symbol := strings.ToUpper(asset)
		id, ok := coinIDs[symbol]
		if !ok {
			continue
		}
		ids = append(ids, id)
		bySymbol[symbol] = id
	}
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", c.currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/simple/price?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	prices := make(map[string]float64, len(bySymbol))
	for symbol, id := range bySymbol {
		if quote, ok := payload[id]; ok {
			prices[symbol] = quote[c.currency]
		}
	}
	return prices, nil
}
