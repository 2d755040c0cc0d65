package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in
	// the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrJobNotFound indicates that the requested reading job does not
	// exist in the store.
	ErrJobNotFound = fmt.Errorf("%w: reading job", ErrNotFound)

	// ErrBalanceNotFound indicates that no credit balance row exists for
	// the user. Callers that check spendable credit treat this as a zero
	// balance; callers that mutate balances treat it as an error.
	ErrBalanceNotFound = fmt.Errorf("%w: credit balance", ErrNotFound)

	// ErrTransactionNotFound indicates that no ledger transaction exists
	// for the given deterministic ID.
	ErrTransactionNotFound = fmt.Errorf("%w: ledger transaction", ErrNotFound)

	// ErrReferralNotFound indicates that the user has no referral link row.
	ErrReferralNotFound = fmt.Errorf("%w: referral link", ErrNotFound)

	// ErrCardNotFound indicates that a requested catalog card does not exist.
	ErrCardNotFound = fmt.Errorf("%w: card", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
