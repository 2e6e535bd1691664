package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet represents a stored balance in a single currency.
//
// Version is the optimistic concurrency token. Balance and Currency are only
// persisted together with a successful Version check.
type Wallet struct {
	ID        string
	Balance   decimal.Decimal
	Currency  string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// View is the outward representation of a wallet. Balance and Currency may be
// converted for display and do not necessarily match what is stored.
type View struct {
	ID       string          `json:"id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// CreateRequest captures data required to open a wallet.
type CreateRequest struct {
	StartingBalance decimal.Decimal
	Currency        string
}

// AdjustRequest captures a balance mutation. Amount is expressed in Currency,
// which may differ from the wallet's own currency.
type AdjustRequest struct {
	WalletID string
	Kind     Kind
	Amount   decimal.Decimal
	Currency string
}

func (w Wallet) view() View {
	return View{ID: w.ID, Balance: w.Balance, Currency: w.Currency}
}
