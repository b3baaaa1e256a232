package staking

import "errors"

var (
	// ErrNotFound indicates the referenced stake does not exist.
	ErrNotFound = errors.New("stake not found")

	// ErrNoActiveStake occurs when a wallet has no active stake to withdraw.
	ErrNoActiveStake = errors.New("no active stake for wallet")
)
