package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fxwallet/internal/middleware"
	"github.com/congo-pay/fxwallet/internal/wallet"
)

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, svcs *Services) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger, d.Metrics))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d)

	api := app.Group("/api/v1")
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// A nil *redis.Client must not reach the limiter as a non-nil interface.
	var limiterCache redis.Cmdable
	if d.Cache != nil {
		limiterCache = d.Cache
	}
	limiter := middleware.AdjustRateLimit(limiterCache, d.Cfg.AdjustRateLimitPerMin, d.Logger)
	RegisterWalletRoutes(api, wallet.NewHandler(svcs.Wallet), limiter)

	return nil
}
