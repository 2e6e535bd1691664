package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	rates map[string][]ExchangeRate
	now   func() time.Time
}

// NewMemoryRepository constructs an in-memory rate repository for tests and
// local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{rates: make(map[string][]ExchangeRate), now: time.Now}
}

func (r *memoryRepository) GetRate(_ context.Context, currency string) (ExchangeRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var (
		latest ExchangeRate
		found  bool
	)
	for _, rate := range r.rates[currency] {
		if rate.EffectiveAt.After(now) {
			continue
		}
		if !found || rate.EffectiveAt.After(latest.EffectiveAt) {
			latest = rate
			found = true
		}
	}
	if !found {
		return ExchangeRate{}, fmt.Errorf("%w: %s", ErrCurrencyNotFound, currency)
	}
	return latest, nil
}

func (r *memoryRepository) UpdateRates(_ context.Context, rates []ExchangeRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rate := range rates {
		history := r.rates[rate.Currency]
		replaced := false
		for i := range history {
			if history[i].EffectiveAt.Equal(rate.EffectiveAt) {
				history[i].Rate = rate.Rate
				replaced = true
				break
			}
		}
		if !replaced {
			history = append(history, rate)
		}
		r.rates[rate.Currency] = history
	}
	return nil
}
