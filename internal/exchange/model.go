package exchange

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyNotFound is returned when no rate is known for a currency.
	ErrCurrencyNotFound = errors.New("currency not found")

	// ErrCacheMiss is returned by a Cache when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)

// ExchangeRate expresses one unit of the base currency in Currency:
// 1 base = Rate × Currency.
type ExchangeRate struct {
	Currency    string          `json:"currency"`
	EffectiveAt time.Time       `json:"effectiveAt"`
	Rate        decimal.Decimal `json:"rate"`
}

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCurrencyCode reports whether code looks like an ISO 4217 alpha code.
func ValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
