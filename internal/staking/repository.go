package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

// Filter narrows stake listings. Zero-valued fields match everything.
type Filter struct {
	Status   Status
	Type     Type
	UserID   string
	WalletID wallet.ID
}

// Repository persists stakes.
//
// Update is the atomic read-modify-write primitive: the mutation function
// runs while the record is locked, so a withdrawal and an accrual tick
// touching the same stake can never interleave partially.
type Repository interface {
	Create(ctx context.Context, stake Stake) error
	Get(ctx context.Context, id ID) (Stake, error)
	ActiveForWallet(ctx context.Context, walletID wallet.ID) (Stake, error)
	List(ctx context.Context, filter Filter) ([]Stake, error)
	// ListUnsettled returns terminal stakes still holding principal or
	// rewards, i.e. settlement work left over for the scheduler.
	ListUnsettled(ctx context.Context) ([]Stake, error)
	Update(ctx context.Context, id ID, mutate func(*Stake) error) (Stake, error)
}

// PostgresRepository stores stakes in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const stakeColumns = `id, wallet_id, user_id, amount, rewards, duration_days, type, network, status, stake_date, last_accrual_at`

// Create inserts a stake record.
func (r *PostgresRepository) Create(ctx context.Context, stake Stake) error {
	stakeID, err := uuid.Parse(string(stake.ID))
	if err != nil {
		return err
	}
	walletID, err := uuid.Parse(string(stake.WalletID))
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO stakes (`+stakeColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		stakeID, walletID, stake.UserID, stake.Amount, stake.Rewards, stake.DurationDays,
		string(stake.Type), stake.Network, string(stake.Status), stake.StakeDate.UTC(), stake.LastAccrualAt.UTC())
	return err
}

// Get fetches a stake by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id ID) (Stake, error) {
	stakeUUID, err := uuid.Parse(string(id))
	if err != nil {
		return Stake{}, ErrNotFound
	}
	return scanStake(r.db.QueryRow(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = $1`, stakeUUID))
}

// ActiveForWallet returns the single active stake bound to a wallet.
func (r *PostgresRepository) ActiveForWallet(ctx context.Context, walletID wallet.ID) (Stake, error) {
	walletUUID, err := uuid.Parse(string(walletID))
	if err != nil {
		return Stake{}, ErrNoActiveStake
	}
	s, err := scanStake(r.db.QueryRow(ctx, `SELECT `+stakeColumns+` FROM stakes
        WHERE wallet_id = $1 AND status = $2 ORDER BY stake_date DESC LIMIT 1`, walletUUID, string(StatusActive)))
	if errors.Is(err, ErrNotFound) {
		return Stake{}, ErrNoActiveStake
	}
	return s, err
}

// List returns stakes matching the filter.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Stake, error) {
	query := `SELECT ` + stakeColumns + ` FROM stakes WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.WalletID != "" {
		walletUUID, err := uuid.Parse(string(filter.WalletID))
		if err != nil {
			return nil, nil
		}
		args = append(args, walletUUID)
		query += fmt.Sprintf(" AND wallet_id = $%d", len(args))
	}
	query += " ORDER BY stake_date"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStakes(rows)
}

// ListUnsettled returns terminal stakes with outstanding value.
func (r *PostgresRepository) ListUnsettled(ctx context.Context) ([]Stake, error) {
	rows, err := r.db.Query(ctx, `SELECT `+stakeColumns+` FROM stakes
        WHERE status IN ($1, $2) AND (rewards > 0 OR amount > 0) ORDER BY stake_date`,
		string(StatusCompleted), string(StatusCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStakes(rows)
}

// Update applies mutate to the stake while holding its row lock.
func (r *PostgresRepository) Update(ctx context.Context, id ID, mutate func(*Stake) error) (Stake, error) {
	stakeUUID, err := uuid.Parse(string(id))
	if err != nil {
		return Stake{}, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Stake{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	s, err := scanStake(tx.QueryRow(ctx, `SELECT `+stakeColumns+` FROM stakes WHERE id = $1 FOR UPDATE`, stakeUUID))
	if err != nil {
		return Stake{}, err
	}

	if err := mutate(&s); err != nil {
		return Stake{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE stakes SET amount = $1, rewards = $2, status = $3, last_accrual_at = $4
        WHERE id = $5`, s.Amount, s.Rewards, string(s.Status), s.LastAccrualAt.UTC(), stakeUUID); err != nil {
		return Stake{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Stake{}, err
	}
	return s, nil
}

func scanStake(row pgx.Row) (Stake, error) {
	var s Stake
	var id, walletID uuid.UUID
	var stakeType, status string
	var stakeDate, lastAccrual time.Time
	err := row.Scan(&id, &walletID, &s.UserID, &s.Amount, &s.Rewards, &s.DurationDays,
		&stakeType, &s.Network, &status, &stakeDate, &lastAccrual)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stake{}, ErrNotFound
		}
		return Stake{}, fmt.Errorf("scan stake: %w", err)
	}
	s.ID = ID(id.String())
	s.WalletID = wallet.ID(walletID.String())
	s.Type = Type(stakeType)
	s.Status = Status(status)
	s.StakeDate = stakeDate.UTC()
	s.LastAccrualAt = lastAccrual.UTC()
	return s, nil
}

func collectStakes(rows pgx.Rows) ([]Stake, error) {
	var stakes []Stake
	for rows.Next() {
		s, err := scanStake(rows)
		if err != nil {
			return nil, err
		}
		stakes = append(stakes, s)
	}
	return stakes, rows.Err()
}
