package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/fxwallet/internal/logging"
)

// DefaultBaseCurrency is the currency every stored rate is relative to.
const DefaultBaseCurrency = "EUR"

// Service refreshes the stored rate table from a Gateway.
type Service struct {
	gateway Gateway
	store   Repository
	base    string
	logger  *slog.Logger
}

// NewService builds a rate refresh service writing into store.
func NewService(gateway Gateway, store Repository, baseCurrency string, logger *slog.Logger) *Service {
	base := NormalizeCurrency(baseCurrency)
	if base == "" {
		base = DefaultBaseCurrency
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{gateway: gateway, store: store, base: base, logger: logger}
}

// BaseCurrency returns the currency rates are expressed against.
func (s *Service) BaseCurrency() string {
	return s.base
}

// RefreshRates pulls the latest table from the gateway and stores it. The
// base currency is always stored at rate 1, including when the feed leaves
// it out.
func (s *Service) RefreshRates(ctx context.Context) error {
	rates, err := s.gateway.LatestRates(ctx)
	if err != nil {
		return fmt.Errorf("fetching latest rates: %w", err)
	}
	if len(rates) == 0 {
		return fmt.Errorf("fetching latest rates: %w: empty table", ErrFeedUnavailable)
	}

	rates = withBaseRate(rates, s.base)

	if err := s.store.UpdateRates(ctx, rates); err != nil {
		return fmt.Errorf("storing rates: %w", err)
	}

	s.logger.Info("exchange rates refreshed",
		"count", len(rates),
		"effective_at", rates[0].EffectiveAt,
		"base", s.base)
	return nil
}

func withBaseRate(rates []ExchangeRate, base string) []ExchangeRate {
	effectiveAt := rates[0].EffectiveAt
	out := lo.Reject(rates, func(r ExchangeRate, _ int) bool { return r.Currency == base })
	return append(out, ExchangeRate{
		Currency:    base,
		EffectiveAt: effectiveAt,
		Rate:        decimal.NewFromInt(1),
	})
}
