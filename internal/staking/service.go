package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartvenkatesh/new-staking/internal/notification"
	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

// Service manages the stake lifecycle: creation debits the wallet, withdrawal
// and settlement credit it back. All wallet postings carry deterministic
// transaction IDs derived from the stake ID, so a crashed or retried
// operation can never move money twice.
type Service struct {
	stakes   Repository
	wallets  *wallet.Service
	notifier notification.Notifier
	clock    Clock
	logger   *slog.Logger
}

// NewService builds a stake lifecycle service.
func NewService(stakes Repository, wallets *wallet.Service, notifier notification.Notifier, clock Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{stakes: stakes, wallets: wallets, notifier: notifier, clock: clock, logger: logger}
}

// CreateStakeInput captures the data required to lock a balance into a stake.
type CreateStakeInput struct {
	UserID       string
	WalletID     wallet.ID
	Amount       decimal.Decimal
	DurationDays int
	Type         Type
	Network      string
}

// CreateStake debits the wallet and persists a new active stake. Fails with
// wallet.ErrInsufficientBalance when the amount exceeds the spendable
// balance; the wallet is left unchanged in that case. If persisting the
// stake fails after the debit, the debit is compensated with a refund
// credit.
func (s *Service) CreateStake(ctx context.Context, input CreateStakeInput) (Stake, error) {
	if !input.Amount.IsPositive() {
		return Stake{}, fmt.Errorf("stake amount must be positive")
	}
	switch input.Type {
	case TypeFixed:
		if input.DurationDays <= 0 {
			return Stake{}, fmt.Errorf("fixed stake requires a positive duration")
		}
	case TypeFlexible:
		if input.DurationDays < 0 {
			return Stake{}, fmt.Errorf("duration must not be negative")
		}
	default:
		return Stake{}, fmt.Errorf("unknown stake type %q", input.Type)
	}

	w, err := s.wallets.Get(ctx, input.WalletID)
	if err != nil {
		return Stake{}, err
	}
	if input.Amount.GreaterThan(w.Amount) {
		return Stake{}, wallet.ErrInsufficientBalance
	}

	stakeID := ID(uuid.NewString())
	if _, err := s.wallets.Debit(ctx, w.ID, input.Amount, "stake:"+string(stakeID), "stake"); err != nil {
		return Stake{}, err
	}

	now := s.clock.Now()
	stake := Stake{
		ID:            stakeID,
		WalletID:      w.ID,
		UserID:        input.UserID,
		Amount:        input.Amount,
		Rewards:       decimal.Zero,
		DurationDays:  input.DurationDays,
		Type:          input.Type,
		Network:       input.Network,
		Status:        StatusActive,
		StakeDate:     now,
		LastAccrualAt: now,
	}

	if err := s.stakes.Create(ctx, stake); err != nil {
		if _, refundErr := s.wallets.Credit(ctx, w.ID, input.Amount, "refund:"+string(stakeID), "refund"); refundErr != nil {
			s.logger.Error("refund after failed stake persist",
				slog.String("stake_id", string(stakeID)),
				slog.String("wallet_id", string(w.ID)),
				slog.Any("error", refundErr))
		}
		return Stake{}, fmt.Errorf("persist stake: %w", err)
	}

	return stake, nil
}

// WithdrawResult reports which settlement branch a withdrawal took and what
// was credited back to the wallet.
type WithdrawResult struct {
	StakeID     ID
	Status      Status
	Matured     bool
	Principal   decimal.Decimal
	RewardsPaid decimal.Decimal
	Credited    decimal.Decimal
}

// Withdraw settles the active stake bound to the wallet address. A matured
// stake pays principal plus accrued rewards and completes; an early
// withdrawal pays principal only, forfeits rewards, and cancels. Both
// branches are terminal.
func (s *Service) Withdraw(ctx context.Context, account string) (WithdrawResult, error) {
	w, err := s.wallets.GetByAddress(ctx, account)
	if err != nil {
		return WithdrawResult{}, err
	}
	active, err := s.stakes.ActiveForWallet(ctx, w.ID)
	if err != nil {
		return WithdrawResult{}, err
	}

	now := s.clock.Now()
	var matured bool
	// The transition runs under the stake lock: if an accrual tick settled
	// the stake since the lookup, the status check fails and nothing is
	// credited here.
	transitioned, err := s.stakes.Update(ctx, active.ID, func(st *Stake) error {
		if st.Status != StatusActive {
			return ErrNoActiveStake
		}
		matured = st.Matured(now)
		if matured {
			st.Status = StatusCompleted
		} else {
			st.Status = StatusCancelled
			st.Rewards = decimal.Zero // forfeited
		}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	principal := transitioned.Amount
	rewardsPaid := transitioned.Rewards

	settled, err := s.Settle(ctx, transitioned)
	if err != nil {
		return WithdrawResult{}, err
	}

	return WithdrawResult{
		StakeID:     transitioned.ID,
		Status:      transitioned.Status,
		Matured:     matured,
		Principal:   principal,
		RewardsPaid: rewardsPaid,
		Credited:    settled,
	}, nil
}

// Settle credits a terminal stake's outstanding principal and rewards back
// to its wallet, then zeroes both fields. The credit is keyed on the stake
// ID, so settling twice cannot pay twice; a stake whose payout crashed
// mid-settlement is finished by the next call. Returns the amount credited.
func (s *Service) Settle(ctx context.Context, stake Stake) (decimal.Decimal, error) {
	if !stake.Terminal() {
		return decimal.Zero, fmt.Errorf("stake %s is not terminal", stake.ID)
	}

	payout := stake.Outstanding()
	if payout.IsPositive() {
		_, err := s.wallets.Credit(ctx, stake.WalletID, payout, "settle:"+string(stake.ID), "settle")
		if err != nil && !errors.Is(err, wallet.ErrDuplicateTransaction) {
			return decimal.Zero, err
		}
	}

	if _, err := s.stakes.Update(ctx, stake.ID, func(st *Stake) error {
		st.Amount = decimal.Zero
		st.Rewards = decimal.Zero
		return nil
	}); err != nil {
		return decimal.Zero, fmt.Errorf("zero settled stake: %w", err)
	}

	if s.notifier != nil && payout.IsPositive() {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindStakeSettled,
			Destination: stake.UserID,
			Body:        fmt.Sprintf("stake %s settled: %s credited to wallet %s", stake.ID, payout, stake.WalletID),
		})
	}

	return payout, nil
}

// ReportMissingWallet notifies the stake owner that settlement is blocked
// because the stake's wallet could not be found. The stake keeps its
// outstanding value until the wallet reappears.
func (s *Service) ReportMissingWallet(ctx context.Context, stake Stake) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindWalletMissing,
		Destination: stake.UserID,
		Body:        fmt.Sprintf("stake %s cannot settle: wallet %s not found", stake.ID, stake.WalletID),
	})
}

// Get retrieves a stake by identifier.
func (s *Service) Get(ctx context.Context, id ID) (Stake, error) {
	return s.stakes.Get(ctx, id)
}

// List returns stakes matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Stake, error) {
	return s.stakes.List(ctx, filter)
}

// StakedAmount returns the principal locked in the active stake bound to a
// wallet address.
func (s *Service) StakedAmount(ctx context.Context, account string) (decimal.Decimal, error) {
	w, err := s.wallets.GetByAddress(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}
	active, err := s.stakes.ActiveForWallet(ctx, w.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return active.Amount, nil
}
