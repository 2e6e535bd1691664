package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RateSource looks up the current base-relative rate of a currency.
type RateSource interface {
	GetRate(ctx context.Context, currency string) (ExchangeRate, error)
}

// Converter converts amounts between currencies by triangulating through the
// base currency.
type Converter struct {
	rates RateSource
}

// NewConverter builds a converter reading rates from source.
func NewConverter(source RateSource) *Converter {
	return &Converter{rates: source}
}

// Convert returns amount expressed in to. Codes are compared and looked up
// upper-cased. Identical currencies short-circuit
// without any rate lookup. Otherwise the amount is taken to the base currency
// first (amount / fromRate) and then to the target (× toRate).
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = NormalizeCurrency(from), NormalizeCurrency(to)
	if from == to {
		return amount, nil
	}

	fromRate, err := c.lookup(ctx, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := c.lookup(ctx, to)
	if err != nil {
		return decimal.Decimal{}, err
	}

	inBase := amount.Div(fromRate)
	return inBase.Mul(toRate), nil
}

func (c *Converter) lookup(ctx context.Context, currency string) (decimal.Decimal, error) {
	rate, err := c.rates.GetRate(ctx, currency)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !rate.Rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("non-positive rate %s for %s", rate.Rate, currency)
	}
	return rate.Rate, nil
}
