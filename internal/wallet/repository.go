package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists wallets. Update must compare-and-swap on Version and
// return ErrConcurrencyConflict when the stored version moved on.
type Repository interface {
	Get(ctx context.Context, id string) (Wallet, error)
	Create(ctx context.Context, wallet *Wallet) error
	Update(ctx context.Context, wallet *Wallet) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet, assigning its identifier and initial version.
func (r *PostgresRepository) Create(ctx context.Context, wallet *Wallet) error {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (id, balance, currency, version, created_at, updated_at)
        VALUES ($1, $2, $3, 1, $4, $4)`, id, wallet.Balance, wallet.Currency, now)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	wallet.ID = id.String()
	wallet.Version = 1
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	return nil
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}
	row := r.db.QueryRow(ctx, `SELECT id, balance, currency, version, created_at, updated_at
        FROM wallets WHERE id = $1`, walletID)
	var w Wallet
	var idVal uuid.UUID
	if err := row.Scan(&idVal, &w.Balance, &w.Currency, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, fmt.Errorf("%w: %s", ErrWalletNotFound, id)
		}
		return Wallet{}, fmt.Errorf("select wallet %s: %w", id, err)
	}
	w.ID = idVal.String()
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

// Update writes balance and currency if the stored version still equals
// wallet.Version, then advances the in-memory version.
func (r *PostgresRepository) Update(ctx context.Context, wallet *Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, wallet.ID)
	}
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, `UPDATE wallets
        SET balance = $1, currency = $2, version = version + 1, updated_at = $3
        WHERE id = $4 AND version = $5`,
		wallet.Balance, wallet.Currency, now, walletID, wallet.Version)
	if err != nil {
		return fmt.Errorf("update wallet %s: %w", wallet.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet %s version %d: %w", wallet.ID, wallet.Version, ErrConcurrencyConflict)
	}
	wallet.Version++
	wallet.UpdatedAt = now
	return nil
}
