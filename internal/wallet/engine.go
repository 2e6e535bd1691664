package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/fxwallet/internal/logging"
	"github.com/congo-pay/fxwallet/internal/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 25 * time.Millisecond
)

// EngineConfig bounds the optimistic retry loop.
type EngineConfig struct {
	MaxAttempts int
	Backoff     Backoff
}

// Engine applies adjustment strategies to stored wallets. Concurrent writers
// to the same wallet are serialised through the repository's version check:
// the loser of a race reloads the winner's balance and reapplies.
type Engine struct {
	repo     Repository
	registry *Registry
	cfg      EngineConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewEngine builds a mutation engine. Zero config values fall back to three
// attempts with linear backoff.
func NewEngine(repo Repository, registry *Registry, cfg EngineConfig, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = LinearBackoff(defaultBackoffBase)
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{repo: repo, registry: registry, cfg: cfg, logger: logger, metrics: m}
}

// Adjust applies kind to the wallet using an amount already expressed in the
// wallet's currency and persists the result. Only version conflicts are
// retried; every other failure is returned as is.
func (e *Engine) Adjust(ctx context.Context, walletID string, kind Kind, amount decimal.Decimal) (Wallet, error) {
	strategy, err := e.registry.Lookup(kind)
	if err != nil {
		return Wallet{}, err
	}

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			e.metrics.ObserveConflictRetry()
			if err := wait(ctx, e.cfg.Backoff(attempt-1)); err != nil {
				return Wallet{}, err
			}
		}

		w, err := e.repo.Get(ctx, walletID)
		if err != nil {
			return Wallet{}, err
		}

		if err := strategy.Apply(&w, amount); err != nil {
			e.metrics.ObserveAdjustment(string(kind), "rejected")
			return Wallet{}, err
		}

		err = e.repo.Update(ctx, &w)
		if err == nil {
			e.metrics.ObserveAdjustment(string(kind), "applied")
			return w, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return Wallet{}, err
		}

		e.logger.Debug("wallet version conflict",
			"wallet_id", walletID,
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts)
	}

	e.metrics.ObserveAdjustment(string(kind), "conflict")
	e.logger.Warn("wallet adjustment gave up after conflicts", "wallet_id", walletID, "attempts", e.cfg.MaxAttempts)
	return Wallet{}, fmt.Errorf("wallet %s after %d attempts: %w", walletID, e.cfg.MaxAttempts, ErrConcurrencyConflict)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
