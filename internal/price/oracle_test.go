package price

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	entries map[string]*TokenPrice
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*TokenPrice{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (*TokenPrice, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[key], nil
}

func (c *memoryCache) Set(_ context.Context, key string, price *TokenPrice) error {
	c.entries[key] = price
	return nil
}

type fixedFetcher struct {
	price *TokenPrice
	err   error
	calls int
}

func (f *fixedFetcher) GetPriceUsd(_ context.Context, _ string) (*TokenPrice, error) {
	f.calls++
	return f.price, f.err
}

var testDay = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestGetDailyPriceUsd_StablecoinShortcut(t *testing.T) {
	fetcher := &fixedFetcher{}
	oracle := NewOracle(fetcher, newMemoryCache())

	for _, mint := range []string{usdcMint, usdtMint} {
		quote, err := oracle.GetDailyPriceUsd(context.Background(), mint, testDay)
		require.NoError(t, err)
		assert.Equal(t, &TokenPrice{Price: 1, Decimals: 6}, quote)
	}
	assert.Zero(t, fetcher.calls)
}

func TestGetDailyPriceUsd_CachesFirstLookup(t *testing.T) {
	fetcher := &fixedFetcher{price: &TokenPrice{Price: 3.5, Decimals: 9}}
	cache := newMemoryCache()
	oracle := NewOracle(fetcher, cache)

	mint := "Mint11111111111111111111111111111111111111"

	quote, err := oracle.GetDailyPriceUsd(context.Background(), mint, testDay)
	require.NoError(t, err)
	assert.Equal(t, 3.5, quote.Price)

	// Second lookup of the same day never leaves the cache.
	quote, err = oracle.GetDailyPriceUsd(context.Background(), mint, testDay)
	require.NoError(t, err)
	assert.Equal(t, 3.5, quote.Price)
	assert.Equal(t, 1, fetcher.calls)

	assert.Contains(t, cache.entries, "price:"+mint+":2024-03-01")
}

func TestGetDailyPriceUsd_DistinctDaysDistinctQuotes(t *testing.T) {
	fetcher := &fixedFetcher{price: &TokenPrice{Price: 1, Decimals: 6}}
	oracle := NewOracle(fetcher, newMemoryCache())

	mint := "Mint11111111111111111111111111111111111111"

	_, err := oracle.GetDailyPriceUsd(context.Background(), mint, testDay)
	require.NoError(t, err)
	_, err = oracle.GetDailyPriceUsd(context.Background(), mint, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls)
}

func TestGetDailyPriceUsd_UnknownToken(t *testing.T) {
	oracle := NewOracle(&fixedFetcher{}, newMemoryCache())

	_, err := oracle.GetDailyPriceUsd(context.Background(), "ghost", testDay)
	assert.ErrorIs(t, err, ErrPriceNotFound)
}

func TestGetDailyPriceUsd_FetcherErrorPropagates(t *testing.T) {
	oracle := NewOracle(&fixedFetcher{err: errors.New("jupiter down")}, newMemoryCache())

	_, err := oracle.GetDailyPriceUsd(context.Background(), "mint", testDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jupiter down")
}

func TestJupiterClient_GetPriceUsd(t *testing.T) {
	var gotQuery, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("ids")
		gotAPIKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"someMint": {"usdPrice": 2.25, "decimals": 8, "liquidity": 100}}`))
	}))
	defer server.Close()

	client := NewJupiterClient(server.URL, "secret")

	quote, err := client.GetPriceUsd(context.Background(), "someMint")
	require.NoError(t, err)
	assert.Equal(t, "someMint", gotQuery)
	assert.Equal(t, "secret", gotAPIKey)
	assert.Equal(t, &TokenPrice{Price: 2.25, Decimals: 8}, quote)
}

func TestJupiterClient_UnknownMint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	quote, err := NewJupiterClient(server.URL, "").GetPriceUsd(context.Background(), "someMint")
	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestJupiterClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewJupiterClient(server.URL, "").GetPriceUsd(context.Background(), "someMint")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
