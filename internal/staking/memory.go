package staking

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[ID]Stake
}

// NewMemoryRepository constructs a concurrency-safe in-memory repository for
// tests and development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[ID]Stake)}
}

func (r *memoryRepository) Create(_ context.Context, stake Stake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[stake.ID]; exists {
		return errors.New("stake exists")
	}
	r.storage[stake.ID] = stake
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id ID) (Stake, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.storage[id]
	if !ok {
		return Stake{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryRepository) ActiveForWallet(_ context.Context, walletID wallet.ID) (Stake, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.storage {
		if s.WalletID == walletID && s.Status == StatusActive {
			return s, nil
		}
	}
	return Stake{}, ErrNoActiveStake
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]Stake, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stakes []Stake
	for _, s := range r.storage {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Type != "" && s.Type != filter.Type {
			continue
		}
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if filter.WalletID != "" && s.WalletID != filter.WalletID {
			continue
		}
		stakes = append(stakes, s)
	}
	sortByStakeDate(stakes)
	return stakes, nil
}

func (r *memoryRepository) ListUnsettled(_ context.Context) ([]Stake, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stakes []Stake
	for _, s := range r.storage {
		if s.Terminal() && s.Outstanding().IsPositive() {
			stakes = append(stakes, s)
		}
	}
	sortByStakeDate(stakes)
	return stakes, nil
}

func (r *memoryRepository) Update(_ context.Context, id ID, mutate func(*Stake) error) (Stake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.storage[id]
	if !ok {
		return Stake{}, ErrNotFound
	}
	if err := mutate(&s); err != nil {
		return Stake{}, err
	}
	r.storage[id] = s
	return s, nil
}

func sortByStakeDate(stakes []Stake) {
	sort.Slice(stakes, func(i, j int) bool {
		if stakes[i].StakeDate.Equal(stakes[j].StakeDate) {
			return stakes[i].ID < stakes[j].ID
		}
		return stakes[i].StakeDate.Before(stakes[j].StakeDate)
	})
}
