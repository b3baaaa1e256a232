package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/smartvenkatesh/new-staking/internal/config"
	"github.com/smartvenkatesh/new-staking/internal/staking"
	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

const tickLeaseKey = "rewards:tick:lease"

// TickReport summarizes one accrual tick.
type TickReport struct {
	StartedAt      time.Time
	Accrued        int
	Matured        int
	Settled        int
	MissingWallets int
	Failures       []error
}

// Err folds the per-stake failures into a single error, or nil when the
// tick completed cleanly.
func (r TickReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("tick completed with %d failed stakes: %w", len(r.Failures), errors.Join(r.Failures...))
}

// Scheduler drives the recurring reward accrual job. Each tick runs two
// passes: accrual over active stakes, then settlement of terminal stakes
// with outstanding value. Overlapping ticks are skipped, never run
// concurrently, and a failure on one stake never aborts the rest of the
// tick.
type Scheduler struct {
	stakes    staking.Repository
	lifecycle *staking.Service
	policy    Policy
	cfg       config.Config
	clock     staking.Clock
	logger    *slog.Logger
	cache     *redis.Client // optional: single-runner lease across instances

	cron       *cron.Cron
	instanceID string
}

// NewScheduler builds the accrual scheduler. cache may be nil, in which case
// no cross-instance lease is taken.
func NewScheduler(stakes staking.Repository, lifecycle *staking.Service, cfg config.Config, clock staking.Clock, logger *slog.Logger, cache *redis.Client) *Scheduler {
	if clock == nil {
		clock = staking.SystemClock()
	}
	return &Scheduler{
		stakes:     stakes,
		lifecycle:  lifecycle,
		policy:     NewPolicy(cfg),
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		cache:      cache,
		instanceID: uuid.NewString(),
	}
}

// Start schedules the recurring tick and begins running it.
func (s *Scheduler) Start() error {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo))
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	spec := "@every " + s.cfg.AccrualInterval.String()
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("schedule accrual job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("accrual scheduler started",
		slog.Duration("interval", s.cfg.AccrualInterval),
		slog.String("mode", string(s.cfg.AccrualMode)))
	return nil
}

// Stop halts scheduling and waits for an in-flight tick to finish, bounded
// by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("accrual scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AccrualInterval)
	defer cancel()

	if !s.acquireLease(ctx) {
		s.logger.Info("accrual tick skipped: lease held elsewhere")
		return
	}
	defer s.releaseLease()

	report := s.RunTick(ctx)
	attrs := []any{
		slog.Int("accrued", report.Accrued),
		slog.Int("matured", report.Matured),
		slog.Int("settled", report.Settled),
		slog.Int("missing_wallets", report.MissingWallets),
		slog.Int("failed", len(report.Failures)),
	}
	if err := report.Err(); err != nil {
		attrs = append(attrs, slog.Any("error", err))
		s.logger.Error("accrual tick completed with failures", attrs...)
		return
	}
	s.logger.Info("accrual tick completed", attrs...)
}

// RunTick executes one accrual pass followed by one settlement pass. It is
// exported so tests and operators can trigger a tick directly.
func (s *Scheduler) RunTick(ctx context.Context) TickReport {
	report := TickReport{StartedAt: s.clock.Now()}
	s.accrualPass(ctx, &report)
	s.settlementPass(ctx, &report)
	return report
}

// accrualPass adds a reward increment to every active stake and transitions
// matured stakes to completed.
func (s *Scheduler) accrualPass(ctx context.Context, report *TickReport) {
	active, err := s.stakes.List(ctx, staking.Filter{Status: staking.StatusActive})
	if err != nil {
		report.Failures = append(report.Failures, fmt.Errorf("list active stakes: %w", err))
		return
	}

	now := s.clock.Now()
	for _, st := range active {
		matured, err := s.accrueOne(ctx, st.ID, now)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Errorf("accrue stake %s: %w", st.ID, err))
			continue
		}
		report.Accrued++
		if matured {
			report.Matured++
		}
	}
}

func (s *Scheduler) accrueOne(ctx context.Context, id staking.ID, now time.Time) (matured bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	_, err = s.stakes.Update(ctx, id, func(st *staking.Stake) error {
		if st.Status != staking.StatusActive {
			// settled by a concurrent withdrawal since the scan
			matured = false
			return nil
		}
		st.Rewards = st.Rewards.Add(s.policy.Increment(*st, now))
		st.LastAccrualAt = now
		if s.policy.Matures(*st, now) {
			st.Status = staking.StatusCompleted
			matured = true
		}
		return nil
	})
	return matured, err
}

// settlementPass credits terminal stakes that still hold principal or
// rewards back into their wallets. A missing wallet is skipped and
// reported; money stays on the stake until the wallet reappears.
func (s *Scheduler) settlementPass(ctx context.Context, report *TickReport) {
	unsettled, err := s.stakes.ListUnsettled(ctx)
	if err != nil {
		report.Failures = append(report.Failures, fmt.Errorf("list unsettled stakes: %w", err))
		return
	}

	for _, st := range unsettled {
		stakeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		_, err := s.lifecycle.Settle(stakeCtx, st)
		cancel()
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				report.MissingWallets++
				s.logger.Warn("settlement skipped: wallet not found",
					slog.String("stake_id", string(st.ID)),
					slog.String("wallet_id", string(st.WalletID)),
					slog.String("outstanding", st.Outstanding().String()))
				s.lifecycle.ReportMissingWallet(ctx, st)
				continue
			}
			report.Failures = append(report.Failures, fmt.Errorf("settle stake %s: %w", st.ID, err))
			continue
		}
		report.Settled++
	}
}

// acquireLease reserves the tick across instances via Redis SetNX. Without
// a cache the scheduler assumes it is the only runner.
func (s *Scheduler) acquireLease(ctx context.Context) bool {
	if s.cache == nil {
		return true
	}
	ok, err := s.cache.SetNX(ctx, tickLeaseKey, s.instanceID, s.cfg.AccrualInterval).Result()
	if err != nil {
		s.logger.Error("tick lease acquisition failed", slog.Any("error", err))
		return false
	}
	return ok
}

func (s *Scheduler) releaseLease() {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if v, err := s.cache.Get(ctx, tickLeaseKey).Result(); err == nil && v == s.instanceID {
		s.cache.Del(ctx, tickLeaseKey) // best effort
	}
}
