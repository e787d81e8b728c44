package rates

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Get_FetchesAndCachesOnMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	fetched := 0
	fetch := func(ctx context.Context, pair string) (decimal.Decimal, error) {
		fetched++
		return decimal.RequireFromString("1650.25"), nil
	}
	cache := NewCache(rdb, fetch, 5*time.Minute, 24*time.Hour)

	mock.ExpectGet("rate:USD/NGN").RedisNil()
	mock.Regexp().ExpectSet("rate:USD/NGN", `.*1650\.25.*`, 24*time.Hour).SetVal("OK")

	rate, err := cache.Get(context.Background(), "USD/NGN")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)
	assert.Equal(t, "USD/NGN", rate.Pair)
	assert.True(t, rate.Value.Equal(decimal.RequireFromString("1650.25")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Get_ServesFreshQuoteWithoutFetching(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	fetch := func(ctx context.Context, pair string) (decimal.Decimal, error) {
		t.Fatal("upstream must not be called for a fresh quote")
		return decimal.Zero, nil
	}
	cache := NewCache(rdb, fetch, 5*time.Minute, 24*time.Hour)

	cached, err := json.Marshal(Rate{
		Pair:      "USD/NGN",
		Value:     decimal.RequireFromString("1649.80"),
		FetchedAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)
	mock.ExpectGet("rate:USD/NGN").SetVal(string(cached))

	rate, err := cache.Get(context.Background(), "USD/NGN")
	require.NoError(t, err)
	assert.True(t, rate.Value.Equal(decimal.RequireFromString("1649.80")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Get_ServesStaleQuoteWhenUpstreamFails(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	fetch := func(ctx context.Context, pair string) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("provider timeout")
	}
	cache := NewCache(rdb, fetch, 5*time.Minute, 24*time.Hour)

	cached, err := json.Marshal(Rate{
		Pair:      "XAU/USD",
		Value:     decimal.RequireFromString("2410.55"),
		FetchedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)
	mock.ExpectGet("rate:XAU/USD").SetVal(string(cached))

	rate, err := cache.Get(context.Background(), "XAU/USD")
	require.NoError(t, err)
	assert.True(t, rate.Value.Equal(decimal.RequireFromString("2410.55")))
	assert.True(t, rate.Stale(5*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Get_FailsWhenNoQuoteAvailable(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	fetch := func(ctx context.Context, pair string) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("provider timeout")
	}
	cache := NewCache(rdb, fetch, 5*time.Minute, 24*time.Hour)

	mock.ExpectGet("rate:EUR/NGN").RedisNil()

	_, err := cache.Get(context.Background(), "EUR/NGN")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_Convert(t *testing.T) {
	fetch := func(ctx context.Context, pair string) (decimal.Decimal, error) {
		return decimal.RequireFromString("1650.333"), nil
	}
	cache := NewCache(nil, fetch, 5*time.Minute, 24*time.Hour)

	amount, rate, err := cache.Convert(context.Background(), "USD/NGN", decimal.RequireFromString("10"))
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("16503.33")))
	assert.Equal(t, "USD/NGN", rate.Pair)
}
