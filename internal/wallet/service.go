package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service exposes wallet balance operations with a non-negativity invariant.
// Every posting carries a client transaction ID so callers can retry or
// replay without double-moving money.
type Service struct {
	repo Repository
}

// NewService builds a wallet service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	OwnerID      string
	Address      string
	CurrencyType string
}

// Create provisions a wallet with a zero balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if input.OwnerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}
	if input.Address == "" {
		return Wallet{}, fmt.Errorf("address is required")
	}

	w := Wallet{
		ID:           ID(uuid.NewString()),
		OwnerID:      input.OwnerID,
		Address:      input.Address,
		CurrencyType: input.CurrencyType,
		Amount:       decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Get retrieves a wallet by identifier.
func (s *Service) Get(ctx context.Context, id ID) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByAddress retrieves a wallet by its provisioned address.
func (s *Service) GetByAddress(ctx context.Context, address string) (Wallet, error) {
	return s.repo.GetByAddress(ctx, address)
}

// Debit atomically decrements the wallet balance. Fails with
// ErrInsufficientBalance when amount exceeds the spendable balance and with
// ErrNotFound when the wallet does not exist.
func (s *Service) Debit(ctx context.Context, id ID, amount decimal.Decimal, txID, kind string) (Wallet, error) {
	if amount.IsNegative() || amount.IsZero() {
		return Wallet{}, fmt.Errorf("debit amount must be positive")
	}
	return s.repo.Post(ctx, id, txID, kind, amount.Neg())
}

// Credit atomically increments the wallet balance. A zero amount is a valid
// no-op posting; a negative amount is rejected.
func (s *Service) Credit(ctx context.Context, id ID, amount decimal.Decimal, txID, kind string) (Wallet, error) {
	if amount.IsNegative() {
		return Wallet{}, fmt.Errorf("credit amount must not be negative")
	}
	return s.repo.Post(ctx, id, txID, kind, amount)
}

// Deposit credits spendable balance on the wallet bound to the address.
func (s *Service) Deposit(ctx context.Context, address string, amount decimal.Decimal) (Wallet, error) {
	w, err := s.repo.GetByAddress(ctx, address)
	if err != nil {
		return Wallet{}, err
	}
	return s.Credit(ctx, w.ID, amount, "deposit:"+uuid.NewString(), "deposit")
}
