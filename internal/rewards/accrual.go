package rewards

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartvenkatesh/new-staking/internal/config"
	"github.com/smartvenkatesh/new-staking/internal/staking"
)

// Policy decides how much reward a stake earns on a tick and when it
// matures. The accrual unit is an explicit choice: per-tick reproduces the
// historical behavior where totals track tick count, per-day prorates each
// increment by the wall-clock time since the stake last accrued.
type Policy struct {
	DailyRate        decimal.Decimal
	Mode             config.AccrualMode
	FlexibleMaturity time.Duration
}

// NewPolicy derives the accrual policy from runtime configuration.
func NewPolicy(cfg config.Config) Policy {
	return Policy{
		DailyRate:        cfg.DailyRate(),
		Mode:             cfg.AccrualMode,
		FlexibleMaturity: cfg.FlexibleMaturity,
	}
}

// Increment returns the reward to add to an active stake at now.
func (p Policy) Increment(st staking.Stake, now time.Time) decimal.Decimal {
	daily := st.Amount.Mul(p.DailyRate)
	if p.Mode != config.AccrualPerDay {
		return daily
	}
	elapsed := now.Sub(st.LastAccrualAt)
	if elapsed <= 0 {
		return decimal.Zero
	}
	fraction := decimal.NewFromFloat(elapsed.Hours()).Div(decimal.NewFromInt(24))
	return daily.Mul(fraction)
}

// Matures reports whether an active stake should transition to completed at
// now. Flexible stakes mature once the minimum hold has elapsed; fixed
// stakes once whole elapsed days reach the lock duration.
func (p Policy) Matures(st staking.Stake, now time.Time) bool {
	switch st.Type {
	case staking.TypeFlexible:
		return now.Sub(st.StakeDate) >= p.FlexibleMaturity
	default:
		daysPassed := int(now.Sub(st.StakeDate).Hours() / 24)
		return daysPassed >= st.DurationDays
	}
}
