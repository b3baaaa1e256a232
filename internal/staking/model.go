package staking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

// ID is the opaque key a stake is stored under.
type ID string

// Type distinguishes the two lock styles offered to stakers.
type Type string

const (
	// TypeFixed locks the principal until DurationDays have elapsed.
	TypeFixed Type = "fixed"
	// TypeFlexible matures after a short configurable hold, independent of
	// DurationDays.
	TypeFlexible Type = "flexible"
)

// Status is the lifecycle state of a stake. Active stakes accrue rewards;
// completed and cancelled are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Stake locks a wallet balance for a duration and accumulates rewards until
// it is settled back into the wallet. Stakes are never deleted; terminal
// records remain as settlement history.
type Stake struct {
	ID           ID
	WalletID     wallet.ID
	UserID       string
	Amount       decimal.Decimal // locked principal; zero once settled
	Rewards      decimal.Decimal // pending reward credits; zero once paid out
	DurationDays int
	Type         Type
	Network      string
	Status       Status
	StakeDate    time.Time
	// LastAccrualAt records when the stake last received a reward increment.
	// Only the elapsed-time accrual mode reads it.
	LastAccrualAt time.Time
}

// MaturityTime is the instant a fixed stake's lock duration elapses.
func (s Stake) MaturityTime() time.Time {
	return s.StakeDate.Add(time.Duration(s.DurationDays) * 24 * time.Hour)
}

// Matured reports whether the lock duration has elapsed at now.
func (s Stake) Matured(now time.Time) bool {
	return !now.Before(s.MaturityTime())
}

// Outstanding is the total value still held by the stake record.
func (s Stake) Outstanding() decimal.Decimal {
	return s.Amount.Add(s.Rewards)
}

// Terminal reports whether the stake has left the active state.
func (s Stake) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusCancelled
}
