package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[ID]Wallet
	applied map[string]struct{}
}

// NewMemoryRepository constructs a concurrency-safe in-memory repository for
// tests and development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[ID]Wallet),
		applied: make(map[string]struct{}),
	}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[wallet.ID]; exists {
		return errors.New("wallet exists")
	}
	r.storage[wallet.ID] = wallet
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id ID) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) GetByAddress(_ context.Context, address string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.storage {
		if w.Address == address {
			return w, nil
		}
	}
	return Wallet{}, ErrNotFound
}

func (r *memoryRepository) Post(_ context.Context, id ID, txID, _ string, delta decimal.Decimal) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if _, dup := r.applied[txID]; dup {
		return w, ErrDuplicateTransaction
	}

	next := w.Amount.Add(delta)
	if next.IsNegative() {
		return Wallet{}, ErrInsufficientBalance
	}

	w.Amount = next
	r.storage[id] = w
	r.applied[txID] = struct{}{}
	return w, nil
}
