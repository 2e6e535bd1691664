package wallet

import "errors"

var (
	// ErrWalletNotFound is returned when the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds is returned by SubtractFunds when the balance cannot
	// cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrencyConflict indicates the stored wallet version no longer
	// matches the version the write was based on.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrUnknownStrategy is returned when no strategy is registered for a kind.
	ErrUnknownStrategy = errors.New("unknown adjustment strategy")

	// ErrDuplicateStrategy is a configuration error raised while building a
	// registry with two strategies for the same kind.
	ErrDuplicateStrategy = errors.New("duplicate adjustment strategy")
)
