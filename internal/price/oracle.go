package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Porostik/dln-dashboard/internal/metrics"
)

// Stablecoin mints quoted at a fixed 1 USD without an upstream call.
const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// ErrPriceNotFound means the upstream API has no quote for the token.
var ErrPriceNotFound = errors.New("price not found")

// Cache stores one quote per (mint, day).
type Cache interface {
	Get(ctx context.Context, key string) (*TokenPrice, error)
	Set(ctx context.Context, key string, price *TokenPrice) error
}

// PriceFetcher is the upstream quote source.
type PriceFetcher interface {
	GetPriceUsd(ctx context.Context, mint string) (*TokenPrice, error)
}

// Oracle resolves the daily USD price of a token mint. The first lookup of a
// (mint, day) pair hits the upstream API and pins the quote in the cache, so
// every event of that day converts at the same rate.
type Oracle struct {
	fetcher PriceFetcher
	cache   Cache
}

func NewOracle(fetcher PriceFetcher, cache Cache) *Oracle {
	return &Oracle{fetcher: fetcher, cache: cache}
}

func (o *Oracle) GetDailyPriceUsd(ctx context.Context, mint string, day time.Time) (*TokenPrice, error) {
	if mint == usdcMint || mint == usdtMint {
		return &TokenPrice{Price: 1, Decimals: 6}, nil
	}

	key := fmt.Sprintf("price:%s:%s", mint, day.Format("2006-01-02"))

	cached, err := o.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("price cache get: %w", err)
	}
	if cached != nil {
		metrics.PriceCacheHits.Inc()
		return cached, nil
	}
	metrics.PriceCacheMisses.Inc()

	quote, err := o.fetcher.GetPriceUsd(ctx, mint)
	if err != nil {
		metrics.PriceLookupErrors.Inc()
		return nil, err
	}
	if quote == nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, mint)
	}

	if err := o.cache.Set(ctx, key, quote); err != nil {
		return nil, fmt.Errorf("price cache set: %w", err)
	}
	return quote, nil
}

// RedisCache stores quotes as JSON values in redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*TokenPrice, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var price TokenPrice
	if err := json.Unmarshal([]byte(raw), &price); err != nil {
		return nil, fmt.Errorf("unmarshal cached price: %w", err)
	}
	return &price, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, price *TokenPrice) error {
	raw, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}
	return c.client.Set(ctx, key, raw, 0).Err()
}
