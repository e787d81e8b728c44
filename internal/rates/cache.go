package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// Fetcher retrieves the current rate for a pair such as "USD/NGN" or
// "XAU/USD" from an upstream provider.
type Fetcher func(ctx context.Context, pair string) (decimal.Decimal, error)

// Rate is one cached quotation.
type Rate struct {
	Pair      string          `json:"pair"`
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Stale reports whether the quotation is older than ttl.
func (r *Rate) Stale(ttl time.Duration) bool {
	return time.Since(r.FetchedAt) > ttl
}

// Cache serves exchange and commodity rates through Redis. Within the
// TTL a cached quotation is returned as is; past the TTL the upstream
// is consulted, and when it fails a stale quotation within the grace
// window is served rather than failing the trade.
type Cache struct {
	rdb   *redis.Client
	fetch Fetcher
	ttl   time.Duration
	grace time.Duration
}

func NewCache(rdb *redis.Client, fetch Fetcher, ttl, grace time.Duration) *Cache {
	return &Cache{rdb: rdb, fetch: fetch, ttl: ttl, grace: grace}
}

func cacheKey(pair string) string {
	return "rate:" + pair
}

// Get returns the rate for a pair, from cache when fresh.
func (c *Cache) Get(ctx context.Context, pair string) (*Rate, error) {
	var stale *Rate
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, cacheKey(pair)).Result()
		if err == nil {
			var cached Rate
			if uerr := json.Unmarshal([]byte(raw), &cached); uerr == nil {
				if !cached.Stale(c.ttl) {
					return &cached, nil
				}
				stale = &cached
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("[RATES] cache read for %s failed: %v", pair, err)
		}
	}

	value, err := c.fetch(ctx, pair)
	if err != nil {
		if stale != nil {
			log.Printf("[RATES] upstream for %s failed, serving stale quote from %s: %v",
				pair, stale.FetchedAt.Format(time.RFC3339), err)
			return stale, nil
		}
		return nil, fmt.Errorf("fetch rate %s: %w", pair, err)
	}

	rate := &Rate{Pair: pair, Value: value, FetchedAt: time.Now().UTC()}
	if c.rdb != nil {
		if raw, merr := json.Marshal(rate); merr == nil {
			if serr := c.rdb.Set(ctx, cacheKey(pair), string(raw), c.grace).Err(); serr != nil {
				log.Printf("[RATES] cache write for %s failed: %v", pair, serr)
			}
		}
	}
	return rate, nil
}

// Convert quotes the amount of the quote currency bought by amount of
// the base currency at the pair's current rate.
func (c *Cache) Convert(ctx context.Context, pair string, amount decimal.Decimal) (decimal.Decimal, *Rate, error) {
	rate, err := c.Get(ctx, pair)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return amount.Mul(rate.Value).Round(2), rate, nil
}
