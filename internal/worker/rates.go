package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/congo-pay/fxwallet/internal/logging"
	"github.com/congo-pay/fxwallet/internal/metrics"
)

// RatesRefresher reloads exchange rates from the upstream feed.
type RatesRefresher interface {
	RefreshRates(ctx context.Context) error
}

// RatesWorker periodically refreshes exchange rates.
type RatesWorker struct {
	refresher RatesRefresher
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewRatesWorker creates a RatesWorker.
func NewRatesWorker(refresher RatesRefresher, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *RatesWorker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RatesWorker{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		metrics:   m,
	}
}

// Run refreshes once immediately and then on every tick. It blocks until the
// context is cancelled. Failed refreshes are logged and retried on the next tick.
func (w *RatesWorker) Run(ctx context.Context) {
	w.logger.Info("rates worker starting", "interval", w.interval)

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("rates worker shutting down")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *RatesWorker) refresh(ctx context.Context) {
	if err := w.refresher.RefreshRates(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.metrics.ObserveRefresh("error")
		w.logger.Error("rates refresh failed", "error", err)
		return
	}
	w.metrics.ObserveRefresh("ok")
	w.logger.Debug("rates refresh completed")
}
