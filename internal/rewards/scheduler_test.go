package rewards

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/smartvenkatesh/new-staking/internal/logging"
	"github.com/smartvenkatesh/new-staking/internal/staking"
	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	scheduler *Scheduler
	lifecycle *staking.Service
	stakes    staking.Repository
	wallets   *wallet.Service
	clock     *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
	wallets := wallet.NewService(wallet.NewMemoryRepository())
	stakes := staking.NewMemoryRepository()
	logger := logging.Discard()
	lifecycle := staking.NewService(stakes, wallets, nil, clock, logger)
	scheduler := NewScheduler(stakes, lifecycle, testConfig(), clock, logger, nil)
	return &fixture{scheduler: scheduler, lifecycle: lifecycle, stakes: stakes, wallets: wallets, clock: clock}
}

func (f *fixture) seedWallet(t *testing.T, amount int64) wallet.Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := f.wallets.Create(ctx, wallet.CreateInput{
		OwnerID:      uuid.NewString(),
		Address:      "0x" + uuid.NewString(),
		CurrencyType: "ETH",
	})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	w, err = f.wallets.Credit(ctx, w.ID, decimal.NewFromInt(amount), "seed:"+uuid.NewString(), "deposit")
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return w
}

func (f *fixture) createStake(t *testing.T, w wallet.Wallet, amount int64, days int, typ staking.Type) staking.Stake {
	t.Helper()
	st, err := f.lifecycle.CreateStake(context.Background(), staking.CreateStakeInput{
		UserID:       uuid.NewString(),
		WalletID:     w.ID,
		Amount:       decimal.NewFromInt(amount),
		DurationDays: days,
		Type:         typ,
		Network:      "ETH",
	})
	if err != nil {
		t.Fatalf("create stake: %v", err)
	}
	return st
}

// Walks the documented end-to-end scenario: a 60 stake out of a 100 wallet
// at 12% APR accrues one daily increment per tick, completes after a day,
// and settles principal plus rewards back into the wallet.
func TestFixedStakeLifecycleAcrossTicks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWallet(t, 100)
	st := f.createStake(t, w, 60, 1, staking.TypeFixed)

	increment := decimal.NewFromInt(60).Mul(f.scheduler.policy.DailyRate)

	// first tick fires well before maturity
	f.clock.Advance(5 * time.Minute)
	report := f.scheduler.RunTick(ctx)
	if err := report.Err(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if report.Accrued != 1 || report.Matured != 0 || report.Settled != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	mid, _ := f.lifecycle.Get(ctx, st.ID)
	if mid.Status != staking.StatusActive {
		t.Fatalf("stake should remain active, got %s", mid.Status)
	}
	if !mid.Rewards.Equal(increment) {
		t.Fatalf("expected rewards %s after one tick, got %s", increment, mid.Rewards)
	}
	balance, _ := f.wallets.Get(ctx, w.ID)
	if !balance.Amount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("wallet must stay at 40 while stake is active, got %s", balance.Amount)
	}

	// next tick fires after the lock duration has elapsed
	f.clock.Advance(24 * time.Hour)
	report = f.scheduler.RunTick(ctx)
	if err := report.Err(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if report.Matured != 1 || report.Settled != 1 {
		t.Fatalf("expected maturity and settlement in one tick: %+v", report)
	}

	final, _ := f.lifecycle.Get(ctx, st.ID)
	if final.Status != staking.StatusCompleted {
		t.Fatalf("expected completed stake, got %s", final.Status)
	}
	if !final.Amount.IsZero() || !final.Rewards.IsZero() {
		t.Fatalf("settled stake must be zeroed: amount=%s rewards=%s", final.Amount, final.Rewards)
	}

	// two ticks accrued two increments; wallet holds 40 + 60 + 2*increment
	want := decimal.NewFromInt(100).Add(increment.Mul(decimal.NewFromInt(2)))
	balance, _ = f.wallets.Get(ctx, w.ID)
	if !balance.Amount.Equal(want) {
		t.Fatalf("expected final balance %s, got %s", want, balance.Amount)
	}
}

func TestFlexibleStakeMaturesAfterHoldThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWallet(t, 100)
	st := f.createStake(t, w, 50, 365, staking.TypeFlexible)

	f.clock.Advance(5 * time.Minute) // below the 6m threshold
	report := f.scheduler.RunTick(ctx)
	if report.Matured != 0 {
		t.Fatalf("flexible stake matured too early: %+v", report)
	}
	mid, _ := f.lifecycle.Get(ctx, st.ID)
	if mid.Status != staking.StatusActive || mid.Rewards.IsZero() {
		t.Fatalf("flexible stake should accrue while active: %+v", mid)
	}

	f.clock.Advance(2 * time.Minute) // past the threshold
	report = f.scheduler.RunTick(ctx)
	if report.Matured != 1 || report.Settled != 1 {
		t.Fatalf("flexible stake should mature and settle: %+v", report)
	}

	final, _ := f.lifecycle.Get(ctx, st.ID)
	if final.Status != staking.StatusCompleted || !final.Outstanding().IsZero() {
		t.Fatalf("flexible stake not settled: %+v", final)
	}
}

func TestSettlementPassIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWallet(t, 100)
	f.createStake(t, w, 60, 1, staking.TypeFixed)

	f.clock.Advance(25 * time.Hour)
	if err := f.scheduler.RunTick(ctx).Err(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	balance, _ := f.wallets.Get(ctx, w.ID)
	settledBalance := balance.Amount

	// a second pass over the already-settled stake must credit nothing
	report := f.scheduler.RunTick(ctx)
	if err := report.Err(); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if report.Settled != 0 {
		t.Fatalf("settled stake processed again: %+v", report)
	}
	balance, _ = f.wallets.Get(ctx, w.ID)
	if !balance.Amount.Equal(settledBalance) {
		t.Fatalf("second settlement moved money: %s -> %s", settledBalance, balance.Amount)
	}
}

func TestMissingWalletIsSkippedAndReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orphan := staking.Stake{
		ID:       staking.ID(uuid.NewString()),
		WalletID: wallet.ID(uuid.NewString()), // no such wallet
		UserID:   uuid.NewString(),
		Amount:   decimal.Zero,
		Rewards:  decimal.NewFromInt(3),
		Type:     staking.TypeFixed,
		Status:   staking.StatusCompleted,
	}
	if err := f.stakes.Create(ctx, orphan); err != nil {
		t.Fatalf("create orphan stake: %v", err)
	}

	report := f.scheduler.RunTick(ctx)
	if err := report.Err(); err != nil {
		t.Fatalf("a missing wallet must not fail the tick: %v", err)
	}
	if report.MissingWallets != 1 {
		t.Fatalf("expected one reported missing wallet: %+v", report)
	}

	// money stays on the stake until the wallet reappears
	after, _ := f.stakes.Get(ctx, orphan.ID)
	if !after.Rewards.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unsettled rewards must be retained, got %s", after.Rewards)
	}
}

// flakyRepository fails every Update on one designated stake.
type flakyRepository struct {
	staking.Repository
	failID staking.ID
}

func (r *flakyRepository) Update(ctx context.Context, id staking.ID, mutate func(*staking.Stake) error) (staking.Stake, error) {
	if id == r.failID {
		return staking.Stake{}, errors.New("store unavailable")
	}
	return r.Repository.Update(ctx, id, mutate)
}

func TestOneFailingStakeDoesNotAbortTheTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	walletA := f.seedWallet(t, 100)
	walletB := f.seedWallet(t, 100)
	stakeA := f.createStake(t, walletA, 10, 5, staking.TypeFixed)
	stakeB := f.createStake(t, walletB, 20, 5, staking.TypeFixed)

	flaky := &flakyRepository{Repository: f.stakes, failID: stakeA.ID}
	logger := logging.Discard()
	lifecycle := staking.NewService(flaky, f.wallets, nil, f.clock, logger)
	scheduler := NewScheduler(flaky, lifecycle, testConfig(), f.clock, logger, nil)

	f.clock.Advance(5 * time.Minute)
	report := scheduler.RunTick(ctx)

	if len(report.Failures) != 1 {
		t.Fatalf("expected exactly one failure: %+v", report)
	}
	if report.Accrued != 1 {
		t.Fatalf("healthy stake should still accrue: %+v", report)
	}
	if report.Err() == nil {
		t.Fatal("partial failure must surface in the report")
	}

	afterB, _ := f.stakes.Get(ctx, stakeB.ID)
	if afterB.Rewards.IsZero() {
		t.Fatal("stake B should have accrued despite stake A failing")
	}
	afterA, _ := f.stakes.Get(ctx, stakeA.ID)
	if !afterA.Rewards.IsZero() {
		t.Fatalf("failed stake must be untouched, got rewards %s", afterA.Rewards)
	}
}

func TestTickLeasePreventsConcurrentRunners(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	f := newFixture(t)
	ctx := context.Background()
	w := f.seedWallet(t, 100)
	st := f.createStake(t, w, 60, 5, staking.TypeFixed)

	scheduler := NewScheduler(f.stakes, f.lifecycle, testConfig(), f.clock, logging.Discard(), cache)

	// another instance holds the lease: the tick must be skipped
	if err := mr.Set(tickLeaseKey, "other-instance"); err != nil {
		t.Fatalf("seed lease: %v", err)
	}
	f.clock.Advance(5 * time.Minute)
	scheduler.tick()

	mid, _ := f.stakes.Get(ctx, st.ID)
	if !mid.Rewards.IsZero() {
		t.Fatalf("tick ran while lease was held elsewhere: rewards=%s", mid.Rewards)
	}

	// lease released: the tick runs and leaves no lease behind
	mr.Del(tickLeaseKey)
	scheduler.tick()

	after, _ := f.stakes.Get(ctx, st.ID)
	if after.Rewards.IsZero() {
		t.Fatal("tick should have accrued once the lease was free")
	}
	if mr.Exists(tickLeaseKey) {
		t.Fatal("lease must be released after the tick")
	}
}
