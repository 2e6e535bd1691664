package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fxwallet/internal/config"
	"github.com/congo-pay/fxwallet/internal/logging"
	"github.com/congo-pay/fxwallet/internal/metrics"
	"github.com/congo-pay/fxwallet/internal/routes"
	"github.com/congo-pay/fxwallet/internal/worker"
)

// Server wraps the Fiber application, the rates worker and shared dependencies.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	svcs   *routes.Services
	worker *worker.RatesWorker
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	deps := routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Registry: reg, Metrics: m}
	svcs := routes.NewServices(deps)

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
	})
	if err := routes.Setup(app, deps, svcs); err != nil {
		return nil, err
	}

	return &Server{
		app:    app,
		cfg:    cfg,
		svcs:   svcs,
		worker: worker.NewRatesWorker(svcs.Rates, cfg.RatesRefreshInterval, logging.Component(logger, "rates_worker"), m),
	}, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Services returns the application services wired into the routes.
func (s *Server) Services() *routes.Services {
	return s.svcs
}

// RunWorker refreshes exchange rates until ctx is cancelled.
func (s *Server) RunWorker(ctx context.Context) {
	s.worker.Run(ctx)
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and then releases the services.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	return s.svcs.Close()
}
