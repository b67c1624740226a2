package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kjannette/stockagg/internal/external"
	"github.com/kjannette/stockagg/internal/models"
)

const stocksListKey = "stocks_list"

// PriceKey is the cache key for a ticker's window; minutes == 0 means the
// latest price.
func PriceKey(ticker string, minutes int) string {
	window := "latest"
	if minutes > 0 {
		window = strconv.Itoa(minutes)
	}
	return "stock_price_" + ticker + "_" + window
}

// CachedSource serves repeat requests from a Store. Only successful
// upstream responses are cached; store failures are logged and bypassed.
type CachedSource struct {
	next     external.PriceSource
	store    Store
	listTTL  time.Duration
	priceTTL time.Duration
}

func NewCachedSource(next external.PriceSource, store Store, listTTL, priceTTL time.Duration) *CachedSource {
	return &CachedSource{next: next, store: store, listTTL: listTTL, priceTTL: priceTTL}
}

func (c *CachedSource) Name() string { return c.next.Name() + "+" + c.store.Name() }

func (c *CachedSource) StoreName() string { return c.store.Name() }

func (c *CachedSource) ListStocks(ctx context.Context) (map[string]string, error) {
	var stocks map[string]string
	if c.lookup(ctx, stocksListKey, &stocks) {
		return stocks, nil
	}

	stocks, err := c.next.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	c.save(ctx, stocksListKey, stocks, c.listTTL)
	return stocks, nil
}

func (c *CachedSource) PriceHistory(ctx context.Context, ticker string, minutes int) ([]models.PricePoint, error) {
	key := PriceKey(ticker, minutes)

	var points []models.PricePoint
	if c.lookup(ctx, key, &points) {
		return points, nil
	}

	points, err := c.next.PriceHistory(ctx, ticker, minutes)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, points, c.priceTTL)
	return points, nil
}

func (c *CachedSource) lookup(ctx context.Context, key string, dst any) bool {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		fmt.Printf("[CACHE] Get %s failed: %v\n", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		fmt.Printf("[CACHE] Discarding unreadable entry %s: %v\n", key, err)
		return false
	}
	return true
}

func (c *CachedSource) save(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		fmt.Printf("[CACHE] Marshal %s failed: %v\n", key, err)
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		fmt.Printf("[CACHE] Set %s failed: %v\n", key, err)
	}
}
