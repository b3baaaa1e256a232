package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists wallets and applies atomic balance postings.
//
// Post is the single mutation primitive: it adjusts the balance by delta
// (negative for debits) under a per-wallet lock, rejects postings that would
// drive the balance negative, and deduplicates on txID so a replayed posting
// cannot move money twice.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id ID) (Wallet, error)
	GetByAddress(ctx context.Context, address string) (Wallet, error)
	Post(ctx context.Context, id ID, txID, kind string, delta decimal.Decimal) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(string(wallet.ID))
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, address, currency_type, amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		walletID, wallet.OwnerID, wallet.Address, wallet.CurrencyType, wallet.Amount, wallet.CreatedAt.UTC())
	return err
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id ID) (Wallet, error) {
	walletUUID, err := uuid.Parse(string(id))
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	return r.scanWallet(r.db.QueryRow(ctx, `SELECT id, owner_id, address, currency_type, amount, created_at
        FROM wallets WHERE id = $1`, walletUUID))
}

// GetByAddress fetches a wallet by its provisioned address.
func (r *PostgresRepository) GetByAddress(ctx context.Context, address string) (Wallet, error) {
	return r.scanWallet(r.db.QueryRow(ctx, `SELECT id, owner_id, address, currency_type, amount, created_at
        FROM wallets WHERE address = $1`, address))
}

// Post applies a balance delta inside a transaction holding the wallet row
// lock. The txID is recorded in wallet_transactions; replaying one returns
// ErrDuplicateTransaction with the current wallet state.
func (r *PostgresRepository) Post(ctx context.Context, id ID, txID, kind string, delta decimal.Decimal) (Wallet, error) {
	walletUUID, err := uuid.Parse(string(id))
	if err != nil {
		return Wallet{}, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := r.scanWallet(tx.QueryRow(ctx, `SELECT id, owner_id, address, currency_type, amount, created_at
        FROM wallets WHERE id = $1 FOR UPDATE`, walletUUID))
	if err != nil {
		return Wallet{}, err
	}

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM wallet_transactions WHERE client_tx_id = $1`, txID).Scan(&existing)
	if err == nil {
		return w, ErrDuplicateTransaction
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, err
	}

	next := w.Amount.Add(delta)
	if next.IsNegative() {
		return Wallet{}, ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx, `INSERT INTO wallet_transactions (id, wallet_id, client_tx_id, kind, amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, uuid.New(), walletUUID, txID, kind, delta, time.Now().UTC()); err != nil {
		return Wallet{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = $1 WHERE id = $2`, next, walletUUID); err != nil {
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}

	w.Amount = next
	return w, nil
}

func (r *PostgresRepository) scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&id, &w.OwnerID, &w.Address, &w.CurrencyType, &w.Amount, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, fmt.Errorf("scan wallet: %w", err)
	}
	w.ID = ID(id.String())
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
