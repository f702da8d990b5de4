package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// CoinGeckoClient fetches spot prices and volumes from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *zap.Logger
}

// NewCoinGeckoClient creates a client against the given base URL
// (https://api.coingecko.com/api/v3 in production, a test server in tests).
func NewCoinGeckoClient(baseURL string, logger *zap.Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		logger: logger,
	}
}

// tokenQuote is one entry of CoinGecko's simple/price response.
type tokenQuote struct {
	USD       float64 `json:"usd"`
	USDChange float64 `json:"usd_24h_change"`
	USDVolume float64 `json:"usd_24h_vol"`
}

// simplePrice fetches the simple/price endpoint for one token id with the
// given extra query flags.
func (c *CoinGeckoClient) simplePrice(ctx context.Context, tokenID string, extra url.Values) (*tokenQuote, error) {
	q := url.Values{}
	q.Set("ids", tokenID)
	q.Set("vs_currencies", "usd")
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	endpoint := c.baseURL + "/simple/price?" + q.Encode()

	resp, err := doWithRetry(ctx, c.httpClient, c.retry, c.logger, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var data map[string]tokenQuote
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	quote, ok := data[tokenID]
	if !ok {
		return nil, fmt.Errorf("failed to fetch price for %s", tokenID)
	}
	return &quote, nil
}

// GetPrice returns the USD spot price for a token id. A zero or missing
// price from the provider is a failure, never a valid $0 price.
func (c *CoinGeckoClient) GetPrice(ctx context.Context, tokenID string) (float64, error) {
	quote, err := c.simplePrice(ctx, tokenID, nil)
	if err != nil {
		return 0, err
	}
	if quote.USD <= 0 {
		return 0, fmt.Errorf("failed to fetch price for %s", tokenID)
	}
	return quote.USD, nil
}

// GetPriceChange returns the USD price and its 24h change percentage.
func (c *CoinGeckoClient) GetPriceChange(ctx context.Context, tokenID string) (price, change float64, err error) {
	quote, err := c.simplePrice(ctx, tokenID, url.Values{"include_24hr_change": {"true"}})
	if err != nil {
		return 0, 0, err
	}
	if quote.USD <= 0 {
		return 0, 0, fmt.Errorf("failed to fetch price for %s", tokenID)
	}
	return quote.USD, quote.USDChange, nil
}

// GetVolume returns the 24h USD trading volume for a token id.
func (c *CoinGeckoClient) GetVolume(ctx context.Context, tokenID string) (float64, error) {
	quote, err := c.simplePrice(ctx, tokenID, url.Values{"include_24hr_vol": {"true"}})
	if err != nil {
		return 0, err
	}
	if quote.USDVolume <= 0 {
		return 0, fmt.Errorf("failed to fetch volume for %s", tokenID)
	}
	return quote.USDVolume, nil
}
