package wallet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind names a balance adjustment rule.
type Kind string

const (
	KindAddFunds           Kind = "AddFunds"
	KindSubtractFunds      Kind = "SubtractFunds"
	KindForceSubtractFunds Kind = "ForceSubtractFunds"
)

var kinds = []Kind{KindAddFunds, KindSubtractFunds, KindForceSubtractFunds}

// ParseKind resolves a kind name case-insensitively. Only the package
// constants are accepted.
func ParseKind(s string) (Kind, error) {
	for _, k := range kinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Strategy mutates the in-memory balance of a wallet. The amount is already
// expressed in the wallet's currency. Persistence is the caller's job.
type Strategy interface {
	Kind() Kind
	Apply(w *Wallet, amount decimal.Decimal) error
}

// AddFunds credits the wallet.
type AddFunds struct{}

func (AddFunds) Kind() Kind { return KindAddFunds }

func (AddFunds) Apply(w *Wallet, amount decimal.Decimal) error {
	w.Balance = w.Balance.Add(amount)
	return nil
}

// SubtractFunds debits the wallet only when the balance covers the amount.
type SubtractFunds struct{}

func (SubtractFunds) Kind() Kind { return KindSubtractFunds }

func (SubtractFunds) Apply(w *Wallet, amount decimal.Decimal) error {
	if w.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s %s, requested %s", ErrInsufficientFunds, w.Balance, w.Currency, amount)
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

// ForceSubtractFunds debits the wallet unconditionally and may leave it
// negative. Reserved for administrative overrides.
type ForceSubtractFunds struct{}

func (ForceSubtractFunds) Kind() Kind { return KindForceSubtractFunds }

func (ForceSubtractFunds) Apply(w *Wallet, amount decimal.Decimal) error {
	w.Balance = w.Balance.Sub(amount)
	return nil
}
