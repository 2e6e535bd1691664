package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the durable source of truth for exchange rates.
type Repository interface {
	// GetRate returns the most recent rate effective at or before now.
	GetRate(ctx context.Context, currency string) (ExchangeRate, error)
	// UpdateRates upserts rates keyed by currency and effective time.
	UpdateRates(ctx context.Context, rates []ExchangeRate) error
}

// PostgresRepository stores rate history in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a rate repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetRate returns the latest effective rate for currency.
func (r *PostgresRepository) GetRate(ctx context.Context, currency string) (ExchangeRate, error) {
	const query = `
        SELECT currency, effective_at, rate
        FROM exchange_rates
        WHERE currency = $1 AND effective_at <= NOW()
        ORDER BY effective_at DESC
        LIMIT 1`
	var rate ExchangeRate
	if err := r.db.QueryRow(ctx, query, currency).Scan(&rate.Currency, &rate.EffectiveAt, &rate.Rate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ExchangeRate{}, fmt.Errorf("%w: %s", ErrCurrencyNotFound, currency)
		}
		return ExchangeRate{}, fmt.Errorf("select rate for %s: %w", currency, err)
	}
	rate.EffectiveAt = rate.EffectiveAt.UTC()
	return rate, nil
}

// UpdateRates upserts all rates in a single transaction.
func (r *PostgresRepository) UpdateRates(ctx context.Context, rates []ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin rates tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const upsert = `
        INSERT INTO exchange_rates (currency, effective_at, rate)
        VALUES ($1, $2, $3)
        ON CONFLICT (currency, effective_at) DO UPDATE SET rate = EXCLUDED.rate`

	batch := &pgx.Batch{}
	for _, rate := range rates {
		batch.Queue(upsert, rate.Currency, rate.EffectiveAt.UTC(), rate.Rate)
	}

	results := tx.SendBatch(ctx, batch)
	for _, rate := range rates {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("upsert rate %s: %w", rate.Currency, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close rates batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rates: %w", err)
	}
	return nil
}
