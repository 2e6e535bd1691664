package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/fxwallet/internal/metrics"
)

type countingRepository struct {
	Repository
	gets      int
	updates   int
	updateErr error
	events    *[]string
}

func (r *countingRepository) GetRate(ctx context.Context, currency string) (ExchangeRate, error) {
	r.gets++
	return r.Repository.GetRate(ctx, currency)
}

func (r *countingRepository) UpdateRates(ctx context.Context, rates []ExchangeRate) error {
	r.updates++
	if r.events != nil {
		*r.events = append(*r.events, "store")
	}
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.Repository.UpdateRates(ctx, rates)
}

type fakeCache struct {
	values  map[string]string
	ttls    map[string]time.Duration
	failGet bool
	failSet bool
	events  *[]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) GetString(_ context.Context, key string) (string, error) {
	if c.failGet {
		return "", errors.New("cache down")
	}
	v, ok := c.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (c *fakeCache) SetString(_ context.Context, key, value string, ttl time.Duration) error {
	if c.events != nil {
		*c.events = append(*c.events, "cache:"+key)
	}
	if c.failSet {
		return errors.New("cache down")
	}
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func seededStore(t *testing.T) Repository {
	t.Helper()
	store := NewMemoryRepository()
	require.NoError(t, store.UpdateRates(context.Background(), []ExchangeRate{
		{Currency: "USD", EffectiveAt: time.Now().Add(-time.Hour).UTC(), Rate: decimal.RequireFromString("1.10")},
	}))
	return store
}

func TestCachedRepositoryReadsThrough(t *testing.T) {
	inner := &countingRepository{Repository: seededStore(t)}
	cache := newFakeCache()
	m := metrics.New(prometheus.NewRegistry())
	repo := NewCachedRepository(inner, cache, 0, nil, m)

	first, err := repo.GetRate(context.Background(), "USD")
	require.NoError(t, err)
	second, err := repo.GetRate(context.Background(), "USD")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.gets)
	assert.True(t, first.Rate.Equal(second.Rate))
	assert.True(t, first.EffectiveAt.Equal(second.EffectiveAt))
	assert.Equal(t, DefaultCacheTTL, cache.ttls["fxrate:v1:USD"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateCacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateCacheLookups.WithLabelValues("hit")))
}

func TestCachedRepositoryDoesNotCacheAbsentRates(t *testing.T) {
	inner := &countingRepository{Repository: seededStore(t)}
	cache := newFakeCache()
	repo := NewCachedRepository(inner, cache, time.Minute, nil, nil)

	_, err := repo.GetRate(context.Background(), "XYZ")
	require.ErrorIs(t, err, ErrCurrencyNotFound)
	_, err = repo.GetRate(context.Background(), "XYZ")
	require.ErrorIs(t, err, ErrCurrencyNotFound)

	assert.Equal(t, 2, inner.gets)
	assert.Empty(t, cache.values)
}

func TestCachedRepositoryDegradesWhenCacheFails(t *testing.T) {
	inner := &countingRepository{Repository: seededStore(t)}
	cache := newFakeCache()
	cache.failGet = true
	cache.failSet = true
	m := metrics.New(prometheus.NewRegistry())
	repo := NewCachedRepository(inner, cache, time.Minute, nil, m)

	rate, err := repo.GetRate(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "1.1", rate.Rate.String())

	require.NoError(t, repo.UpdateRates(context.Background(), []ExchangeRate{
		{Currency: "GBP", EffectiveAt: time.Now().Add(-time.Minute), Rate: decimal.RequireFromString("0.86")},
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateCacheLookups.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateCacheWrites.WithLabelValues("error")))
}

func TestCachedRepositoryIgnoresUndecodableEntries(t *testing.T) {
	inner := &countingRepository{Repository: seededStore(t)}
	cache := newFakeCache()
	cache.values["fxrate:v1:USD"] = "not-json"
	repo := NewCachedRepository(inner, cache, time.Minute, nil, nil)

	rate, err := repo.GetRate(context.Background(), "USD")

	require.NoError(t, err)
	assert.Equal(t, "1.1", rate.Rate.String())
	assert.Equal(t, 1, inner.gets)
	assert.NotEqual(t, "not-json", cache.values["fxrate:v1:USD"])
}

func TestCachedRepositoryWritesStoreBeforeCache(t *testing.T) {
	var events []string
	inner := &countingRepository{Repository: NewMemoryRepository(), events: &events}
	cache := newFakeCache()
	cache.events = &events
	repo := NewCachedRepository(inner, cache, time.Minute, nil, nil)

	past := time.Now().Add(-24 * time.Hour).UTC()
	older := past.Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour).UTC()
	require.NoError(t, repo.UpdateRates(context.Background(), []ExchangeRate{
		{Currency: "USD", EffectiveAt: older, Rate: decimal.RequireFromString("1.05")},
		{Currency: "USD", EffectiveAt: past, Rate: decimal.RequireFromString("1.10")},
		{Currency: "JPY", EffectiveAt: future, Rate: decimal.RequireFromString("160")},
	}))

	assert.Equal(t, []string{"store", "cache:fxrate:v1:USD"}, events)
	assert.Equal(t, 2, inner.gets)

	rate, err := repo.GetRate(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "1.1", rate.Rate.String())
	assert.Equal(t, 2, inner.gets)
}

func TestCachedRepositoryBackfillKeepsNewerStoredRate(t *testing.T) {
	store := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, store.UpdateRates(ctx, []ExchangeRate{
		{Currency: "USD", EffectiveAt: time.Now().Add(-time.Hour).UTC(), Rate: decimal.RequireFromString("1.20")},
	}))
	cache := newFakeCache()
	repo := NewCachedRepository(store, cache, time.Minute, nil, nil)

	require.NoError(t, repo.UpdateRates(ctx, []ExchangeRate{
		{Currency: "USD", EffectiveAt: time.Now().Add(-25 * time.Hour).UTC(), Rate: decimal.RequireFromString("1.10")},
	}))

	durable, err := store.GetRate(ctx, "USD")
	require.NoError(t, err)
	cached, err := repo.GetRate(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, "1.2", durable.Rate.String())
	assert.Equal(t, "1.2", cached.Rate.String())
	assert.Contains(t, cache.values["fxrate:v1:USD"], `"1.2"`)
}

func TestCachedRepositorySkipsCacheWhenStoreFails(t *testing.T) {
	inner := &countingRepository{Repository: NewMemoryRepository(), updateErr: errors.New("db down")}
	cache := newFakeCache()
	repo := NewCachedRepository(inner, cache, time.Minute, nil, nil)

	err := repo.UpdateRates(context.Background(), []ExchangeRate{
		{Currency: "USD", EffectiveAt: time.Now().Add(-time.Hour), Rate: decimal.RequireFromString("1.10")},
	})

	require.Error(t, err)
	assert.Empty(t, cache.values)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewRedisCache(client)
	ctx := context.Background()

	_, err := cache.GetString(ctx, "fxrate:v1:USD")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.SetString(ctx, "fxrate:v1:USD", "payload", time.Minute))
	got, err := cache.GetString(ctx, "fxrate:v1:USD")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.Equal(t, time.Minute, mr.TTL("fxrate:v1:USD"))

	mr.FastForward(2 * time.Minute)
	_, err = cache.GetString(ctx, "fxrate:v1:USD")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCachedRepositoryOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	inner := &countingRepository{Repository: seededStore(t)}
	repo := NewCachedRepository(inner, NewRedisCache(client), time.Minute, nil, nil)

	_, err := repo.GetRate(context.Background(), "USD")
	require.NoError(t, err)
	assert.True(t, mr.Exists("fxrate:v1:USD"))

	mr.Close()
	rate, err := repo.GetRate(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "1.1", rate.Rate.String())
	assert.Equal(t, 2, inner.gets)
}
