package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/kjannette/stockagg/internal/httputil"
	"github.com/kjannette/stockagg/internal/models"
)

var ErrUnknownTicker = errors.New("unknown ticker")

type ExchangeOptions struct {
	BaseURL     string
	APIKey      string
	TokenURL    string
	Credentials Credentials
	Timeout     time.Duration
	Retry       *httputil.RetryConfig
}

// ExchangeClient talks to the upstream stock exchange API. Requests carry
// a bearer token when one has been acquired, otherwise the static API key.
type ExchangeClient struct {
	baseURL    string
	apiKey     string
	tokenURL   string
	creds      Credentials
	httpClient *http.Client
	retry      httputil.RetryConfig

	mu      sync.RWMutex
	token   string
	tokenAt time.Time
}

func NewExchangeClient(opts ExchangeOptions) *ExchangeClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := httputil.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	return &ExchangeClient{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		tokenURL:   opts.TokenURL,
		creds:      opts.Credentials,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

func (c *ExchangeClient) Name() string { return "exchange" }

func (c *ExchangeClient) ListStocks(ctx context.Context) (map[string]string, error) {
	resp, err := c.get(ctx, "/stocks")
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list stocks: exchange returned status %d", resp.StatusCode)
	}

	var data struct {
		Stocks map[string]string `json:"stocks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode stocks: %w", err)
	}
	if data.Stocks == nil {
		data.Stocks = map[string]string{}
	}
	return data.Stocks, nil
}

func (c *ExchangeClient) PriceHistory(ctx context.Context, ticker string, minutes int) ([]models.PricePoint, error) {
	path := "/stocks/" + url.PathEscape(ticker)
	if minutes > 0 {
		path += "?minutes=" + strconv.Itoa(minutes)
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	default:
		return nil, fmt.Errorf("price history for %s: exchange returned status %d", ticker, resp.StatusCode)
	}

	if minutes > 0 {
		var points []models.PricePoint
		if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
			return nil, fmt.Errorf("decode price history for %s: %w", ticker, err)
		}
		if points == nil {
			points = []models.PricePoint{}
		}
		fmt.Printf("[EXCHANGE] Retrieved %d price points for %s (%d min)\n", len(points), ticker, minutes)
		return points, nil
	}

	var latest struct {
		Stock *models.PricePoint `json:"stock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		return nil, fmt.Errorf("decode latest price for %s: %w", ticker, err)
	}
	if latest.Stock == nil {
		return nil, fmt.Errorf("latest price for %s: response has no stock field", ticker)
	}
	fmt.Printf("[EXCHANGE] Retrieved latest price for %s\n", ticker)
	return []models.PricePoint{*latest.Stock}, nil
}

func (c *ExchangeClient) get(ctx context.Context, path string) (*http.Response, error) {
	target := c.baseURL + path
	return httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		if auth := c.authorization(); auth != "" {
			req.Header.Set("Authorization", auth)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

func (c *ExchangeClient) authorization() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return "Bearer " + c.token
	}
	return c.apiKey
}
