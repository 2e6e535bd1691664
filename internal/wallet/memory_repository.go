package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and local
// development. Update performs the same version check as the SQL store.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, wallet *Wallet) error {
	now := time.Now().UTC()
	wallet.ID = uuid.NewString()
	wallet.Version = 1
	wallet.CreatedAt = now
	wallet.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[wallet.ID] = *wallet
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[id]
	if !ok {
		return Wallet{}, fmt.Errorf("%w: %s", ErrWalletNotFound, id)
	}
	return wallet, nil
}

func (r *memoryRepository) Update(_ context.Context, wallet *Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.storage[wallet.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWalletNotFound, wallet.ID)
	}
	if stored.Version != wallet.Version {
		return fmt.Errorf("wallet %s version %d: %w", wallet.ID, wallet.Version, ErrConcurrencyConflict)
	}
	wallet.Version++
	wallet.UpdatedAt = time.Now().UTC()
	r.storage[wallet.ID] = *wallet
	return nil
}
