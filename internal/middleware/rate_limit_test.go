package middleware

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/fxwallet/internal/logging"
)

func rateLimitedApp(cache redis.Cmdable, limit int) *fiber.App {
	app := fiber.New()
	app.Post("/wallets/:walletId/adjustbalance", AdjustRateLimit(cache, limit, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func adjust(t *testing.T, app *fiber.App, walletID string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/wallets/"+walletID+"/adjustbalance", nil))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAdjustRateLimitPerWallet(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := rateLimitedApp(cache, 2)

	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w1"))
	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w1"))
	assert.Equal(t, fiber.StatusTooManyRequests, adjust(t, app, "w1"))
	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w2"))

	assert.True(t, mr.TTL(adjustRateLimitPrefix+"w1") > 0)
}

func TestAdjustRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	app := rateLimitedApp(cache, 1)
	mr.Close()

	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w1"))
	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w1"))
}

func TestAdjustRateLimitWithoutRedisUsesLocalBuckets(t *testing.T) {
	app := rateLimitedApp(nil, 2)

	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w1"))
	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w1"))
	assert.Equal(t, fiber.StatusTooManyRequests, adjust(t, app, "w1"))
	assert.Equal(t, fiber.StatusOK, adjust(t, app, "w2"))
}

func TestWalletBucketsEvictIdleWallets(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	buckets := newWalletBuckets(2, func() time.Time { return now })

	for i := 0; i < 100; i++ {
		assert.True(t, buckets.allow(fmt.Sprintf("unknown-%d", i)))
	}
	assert.Equal(t, 100, buckets.size())

	now = now.Add(30 * time.Second)
	assert.True(t, buckets.allow("active"))
	assert.Equal(t, 101, buckets.size())

	now = now.Add(31 * time.Second)
	assert.True(t, buckets.allow("active"))
	assert.Equal(t, 1, buckets.size())
}

func TestWalletBucketsLimitWithinWindow(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	buckets := newWalletBuckets(2, func() time.Time { return now })

	assert.True(t, buckets.allow("w1"))
	assert.True(t, buckets.allow("w1"))
	assert.False(t, buckets.allow("w1"))

	now = now.Add(31 * time.Second)
	assert.True(t, buckets.allow("w1"))
	assert.False(t, buckets.allow("w1"))
}
