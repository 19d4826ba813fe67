// Package quote implements the Quote Cache (spec.md §4.2): a short-TTL
// memoized USD price per currency, with stale-fallback and a
// currency-specific last-resort constant when no cached value exists
// at all.
package quote

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crashcore/internal/money"
)

// Source fetches fresh USD prices for the supported currencies in one
// round trip. internal/quote/coingecko.go is the production
// implementation; tests substitute a fake.
type Source interface {
	FetchAll(ctx context.Context) (map[money.Currency]decimal.Decimal, error)
}

type entry struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// Cache is a process-wide, lock-guarded price cache. Readers may
// overlap; a refresh briefly holds the write lock while the in-memory
// map is replaced (spec.md §5 "Shared resources").
type Cache struct {
	mu     sync.RWMutex
	prices map[money.Currency]entry

	source Source
	ttl    time.Duration
	log    *zap.Logger
}

// New builds a Cache with the given TTL (spec.md §6.3
// PRICE_CACHE_DURATION_MS, default 10s).
func New(source Source, ttl time.Duration, log *zap.Logger) *Cache {
	return &Cache{
		prices: make(map[money.Currency]entry),
		source: source,
		ttl:    ttl,
		log:    log,
	}
}

// Get returns the USD price for currency c, per spec.md §4.2's
// fresh/stale/fallback precedence.
func (c *Cache) Get(ctx context.Context, cur money.Currency) decimal.Decimal {
	if fresh, ok := c.freshEntry(cur); ok {
		return fresh
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	prices, err := c.source.FetchAll(fetchCtx)
	if err != nil {
		return c.fallback(cur, err)
	}

	price, ok := prices[cur]
	if !ok {
		return c.fallback(cur, nil)
	}

	c.store(cur, price)
	return price
}

// GetAll fans the fetch out for every supported currency in one
// refresh, per spec.md §4.2's get_all, and degrades per-currency on
// partial failure.
func (c *Cache) GetAll(ctx context.Context) map[money.Currency]decimal.Decimal {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := make(map[money.Currency]decimal.Decimal, len(money.Supported))

	if fresh := c.allFresh(); fresh {
		c.mu.RLock()
		for _, cur := range money.Supported {
			result[cur] = c.prices[cur].price
		}
		c.mu.RUnlock()
		return result
	}

	prices, err := c.source.FetchAll(fetchCtx)
	if err != nil {
		if c.log != nil {
			c.log.Warn("quote source fetch failed, degrading per-currency", zap.Error(err))
		}
		for _, cur := range money.Supported {
			result[cur] = c.fallback(cur, err)
		}
		return result
	}

	for _, cur := range money.Supported {
		price, ok := prices[cur]
		if !ok {
			result[cur] = c.fallback(cur, nil)
			continue
		}
		c.store(cur, price)
		result[cur] = price
	}
	return result
}

func (c *Cache) allFresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.prices) < len(money.Supported) {
		return false
	}
	now := time.Now()
	for _, cur := range money.Supported {
		e, ok := c.prices[cur]
		if !ok || now.Sub(e.fetchedAt) >= c.ttl {
			return false
		}
	}
	return true
}

func (c *Cache) freshEntry(cur money.Currency) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.prices[cur]
	if !ok || time.Since(e.fetchedAt) >= c.ttl {
		return decimal.Decimal{}, false
	}
	return e.price, true
}

func (c *Cache) store(cur money.Currency, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[cur] = entry{price: price, fetchedAt: time.Now()}
}

// fallback returns the stale cached price if one exists, else
// currency's hard-coded last resort (spec.md §4.2 step 4).
func (c *Cache) fallback(cur money.Currency, cause error) decimal.Decimal {
	c.mu.RLock()
	stale, ok := c.prices[cur]
	c.mu.RUnlock()

	if ok {
		if c.log != nil {
			c.log.Warn("quote source unavailable, serving stale price",
				zap.String("currency", string(cur)), zap.Error(cause))
		}
		return stale.price
	}

	if c.log != nil {
		c.log.Warn("quote source unavailable, no cached price, using fallback constant",
			zap.String("currency", string(cur)), zap.Error(cause))
	}
	return money.FallbackPrice(cur)
}
