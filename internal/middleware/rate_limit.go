package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const adjustRateLimitPrefix = "rl:adjust:"

// AdjustRateLimit caps balance adjustments per wallet per minute. With Redis
// the counter is shared across instances and a Redis failure lets the request
// through. Without Redis each instance enforces the limit with its own token
// buckets.
func AdjustRateLimit(cache redis.Cmdable, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	if cache == nil {
		return localRateLimit(maxPerMin)
	}
	return func(c *fiber.Ctx) error {
		walletID := c.Params("walletId")
		if walletID == "" {
			return c.Next()
		}

		ctx := c.UserContext()
		key := adjustRateLimitPrefix + walletID
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit check failed", slog.String("wallet_id", walletID), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return tooManyAdjustments()
		}
		return c.Next()
	}
}

func localRateLimit(maxPerMin int) fiber.Handler {
	buckets := newWalletBuckets(maxPerMin, time.Now)

	return func(c *fiber.Ctx) error {
		walletID := c.Params("walletId")
		if walletID == "" {
			return c.Next()
		}
		if !buckets.allow(walletID) {
			return tooManyAdjustments()
		}
		return c.Next()
	}
}

// bucketIdleTTL is how long a bucket may go unused before it is dropped. A
// bucket idle for a full minute has refilled, so recreating it loses nothing.
const bucketIdleTTL = time.Minute

type walletBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// walletBuckets holds one token bucket per wallet and sweeps idle ones, so
// the map stays bounded by the wallets active in the last minute.
type walletBuckets struct {
	mu        sync.Mutex
	buckets   map[string]*walletBucket
	every     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newWalletBuckets(maxPerMin int, now func() time.Time) *walletBuckets {
	return &walletBuckets{
		buckets:   make(map[string]*walletBucket),
		every:     rate.Every(time.Minute / time.Duration(maxPerMin)),
		burst:     maxPerMin,
		now:       now,
		lastSweep: now(),
	}
}

func (b *walletBuckets) allow(walletID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= bucketIdleTTL {
		for id, bucket := range b.buckets {
			if now.Sub(bucket.lastSeen) >= bucketIdleTTL {
				delete(b.buckets, id)
			}
		}
		b.lastSweep = now
	}

	bucket, ok := b.buckets[walletID]
	if !ok {
		bucket = &walletBucket{limiter: rate.NewLimiter(b.every, b.burst)}
		b.buckets[walletID] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

func (b *walletBuckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

func tooManyAdjustments() error {
	return fiber.NewError(http.StatusTooManyRequests, "too many adjustments for this wallet, try again later")
}
