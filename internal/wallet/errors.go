package wallet

import "errors"

var (
	// ErrNotFound indicates the referenced wallet does not exist.
	ErrNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance occurs when a debit exceeds the wallet's
	// spendable balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateTransaction indicates the provided client transaction
	// identifier was already applied and therefore the posting should be
	// treated as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)
