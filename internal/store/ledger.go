package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
)

// LedgerStore defines the persistence primitives for credit balances and
// their append-only transaction log. It deliberately exposes row-level
// operations; the ledger service composes them inside a single database
// transaction so a balance mutation and its log entry commit as one unit.
type LedgerStore interface {
	// GetBalance retrieves the user's credit balance.
	// Returns ErrBalanceNotFound if the user has no balance row.
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error)

	// GetBalanceForUpdate retrieves the balance with a row lock. Only
	// meaningful on a store bound to a transaction via WithTx.
	GetBalanceForUpdate(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error)

	// CreateBalanceIfMissing inserts a zero balance row for the user when
	// none exists yet. An existing row is left untouched.
	CreateBalanceIfMissing(ctx context.Context, userID uuid.UUID) error

	// UpdateBalance persists new tier values for an existing balance row.
	UpdateBalance(ctx context.Context, balance *domain.CreditBalance) error

	// AppendTransaction appends a ledger transaction. Transaction IDs are
	// deterministic per cause; appending an ID that already exists is a
	// no-op and returns false, making retried financial effects safe.
	AppendTransaction(ctx context.Context, tx *domain.LedgerTransaction) (bool, error)

	// GetTransaction retrieves a transaction by its deterministic ID.
	// Returns ErrTransactionNotFound if it was never written.
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.LedgerTransaction, error)

	// DB returns the underlying database connection, used by services to
	// open transactions.
	DB() *sql.DB

	// WithTx returns a new LedgerStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) LedgerStore
}
