package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/congo-pay/fxwallet/internal/logging"
	"github.com/congo-pay/fxwallet/internal/metrics"
)

const (
	// DefaultCacheTTL bounds how long a cached rate is served.
	DefaultCacheTTL = 10 * time.Minute

	cacheKeyPrefix = "fxrate:v1:"
)

// CachedRepository decorates a durable Repository with a read-through,
// write-through cache. The cache is never authoritative: every cache failure
// degrades to the durable store and is only logged.
type CachedRepository struct {
	inner   Repository
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCachedRepository wraps inner with cache. A non-positive ttl uses
// DefaultCacheTTL.
func NewCachedRepository(inner Repository, cache Cache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CachedRepository{inner: inner, cache: cache, ttl: ttl, logger: logger, metrics: m}
}

// GetRate serves currency from the cache when possible, otherwise from the
// durable store, populating the cache on the way out.
func (r *CachedRepository) GetRate(ctx context.Context, currency string) (ExchangeRate, error) {
	key := cacheKey(currency)

	if rate, ok := r.readCache(ctx, key); ok {
		return rate, nil
	}

	rate, err := r.inner.GetRate(ctx, currency)
	if err != nil {
		return ExchangeRate{}, err
	}

	r.writeCache(ctx, key, rate)
	return rate, nil
}

// UpdateRates writes to the durable store and, once that succeeded, refills
// the cache for every currency in the batch from the durable store. The batch
// may predate rates already stored, so it is never cached directly.
func (r *CachedRepository) UpdateRates(ctx context.Context, rates []ExchangeRate) error {
	if err := r.inner.UpdateRates(ctx, rates); err != nil {
		return err
	}

	currencies := lo.Uniq(lo.Map(rates, func(rate ExchangeRate, _ int) string { return rate.Currency }))
	for _, currency := range currencies {
		current, err := r.inner.GetRate(ctx, currency)
		if err != nil {
			if !errors.Is(err, ErrCurrencyNotFound) {
				r.logger.Warn("rate cache refill read failed", "currency", currency, "error", err)
			}
			continue
		}
		r.writeCache(ctx, cacheKey(currency), current)
	}
	return nil
}

func (r *CachedRepository) readCache(ctx context.Context, key string) (ExchangeRate, bool) {
	cached, err := r.cache.GetString(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			r.metrics.ObserveCacheLookup("miss")
			r.logger.Debug("rate cache miss", "key", key)
		} else {
			r.metrics.ObserveCacheLookup("error")
			r.logger.Warn("rate cache read failed", "key", key, "error", err)
		}
		return ExchangeRate{}, false
	}

	var rate ExchangeRate
	if err := json.Unmarshal([]byte(cached), &rate); err != nil {
		r.metrics.ObserveCacheLookup("error")
		r.logger.Warn("rate cache entry undecodable", "key", key, "error", err)
		return ExchangeRate{}, false
	}

	r.metrics.ObserveCacheLookup("hit")
	return rate, true
}

func (r *CachedRepository) writeCache(ctx context.Context, key string, rate ExchangeRate) {
	payload, err := json.Marshal(rate)
	if err != nil {
		r.metrics.ObserveCacheWrite("error")
		r.logger.Warn("rate cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.cache.SetString(ctx, key, string(payload), r.ttl); err != nil {
		r.metrics.ObserveCacheWrite("error")
		r.logger.Warn("rate cache write failed", "key", key, "error", err)
		return
	}
	r.metrics.ObserveCacheWrite("ok")
}

func cacheKey(currency string) string {
	return fmt.Sprintf("%s%s", cacheKeyPrefix, NormalizeCurrency(currency))
}
