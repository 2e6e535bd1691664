package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/congo-pay/fxwallet/internal/config"
	"github.com/congo-pay/fxwallet/internal/infra"
	"github.com/congo-pay/fxwallet/internal/logging"
	"github.com/congo-pay/fxwallet/internal/routes"
	"github.com/congo-pay/fxwallet/internal/server"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	app := &cli.App{
		Name:  "fxwallet",
		Usage: "multi-currency wallet balance service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the exchange rates worker",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: migrate,
			},
			{
				Name:   "refresh-rates",
				Usage:  "fetch exchange rates from the feed once and store them",
				Action: refreshRates,
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type stores struct {
	cfg    config.Config
	logger *slog.Logger
	db     *pgxpool.Pool
	cache  *redis.Client
}

// connect loads configuration and opens the stores that are configured.
func connect(ctx context.Context) (*stores, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt := &stores{cfg: cfg, logger: logging.New(cfg.LogLevel, cfg.LogFormat)}

	if cfg.DatabaseURL != "" {
		if rt.db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL, 0); err != nil {
			return nil, err
		}
	} else {
		rt.logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	if cfg.RedisURL != "" {
		if rt.cache, err = infra.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			rt.close()
			return nil, err
		}
	} else {
		rt.logger.Warn("REDIS_URL not set, rate cache and idempotency disabled")
	}

	return rt, nil
}

func (rt *stores) close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Warn("close redis", "error", err)
		}
	}
	if rt.db != nil {
		rt.db.Close()
	}
}

func (rt *stores) migrate(ctx context.Context) error {
	if rt.db == nil {
		return nil
	}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	applied, err := infra.RunMigrations(ctx, rt.db, sub)
	if err != nil {
		return err
	}
	for _, name := range applied {
		rt.logger.Info("migration applied", "file", name)
	}
	return nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := connect(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.migrate(ctx); err != nil {
		return err
	}

	srv, err := server.New(rt.cfg, rt.db, rt.cache, rt.logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		srv.RunWorker(ctx)
	}()

	srvErrCh := make(chan error, 1)
	go func() {
		rt.logger.Info("http server listening", "addr", rt.cfg.Address())
		srvErrCh <- srv.Listen()
	}()

	select {
	case <-ctx.Done():
		rt.logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		stop()
		<-workerDone
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	<-workerDone

	rt.logger.Info("server exited cleanly")
	return nil
}

func migrate(c *cli.Context) error {
	rt, err := connect(c.Context)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.db == nil {
		return fmt.Errorf("DATABASE_URL is required to run migrations")
	}
	return rt.migrate(c.Context)
}

func refreshRates(c *cli.Context) error {
	rt, err := connect(c.Context)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.db == nil {
		return fmt.Errorf("DATABASE_URL is required to store rates")
	}
	if err := rt.migrate(c.Context); err != nil {
		return err
	}

	svcs := routes.NewServices(routes.Deps{Cfg: rt.cfg, DB: rt.db, Cache: rt.cache, Logger: rt.logger})
	defer svcs.Close()
	if err := svcs.Rates.RefreshRates(c.Context); err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}
	rt.logger.Info("exchange rates refreshed", "base", svcs.Rates.BaseCurrency())
	return nil
}
