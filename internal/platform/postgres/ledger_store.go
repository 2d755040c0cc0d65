package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/platform/logger"
	"github.com/veilmoth/arcana-api/internal/store"
)

// PostgresLedgerStore implements the store.LedgerStore interface using
// PostgreSQL. Transaction appends rely on the primary key of
// ledger_transactions: IDs are deterministic per cause, so a retried
// append hits ON CONFLICT DO NOTHING and becomes a no-op.
type PostgresLedgerStore struct {
	db   store.DBTX
	conn *sql.DB
}

// NewPostgresLedgerStore creates a new PostgresLedgerStore.
func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db, conn: db}
}

// WithTx returns a new LedgerStore bound to the given transaction.
func (s *PostgresLedgerStore) WithTx(tx *sql.Tx) store.LedgerStore {
	return &PostgresLedgerStore{db: tx, conn: s.conn}
}

// DB returns the underlying database connection.
func (s *PostgresLedgerStore) DB() *sql.DB {
	return s.conn
}

// GetBalance retrieves the user's credit balance.
func (s *PostgresLedgerStore) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	return s.getBalance(ctx, userID, false)
}

// GetBalanceForUpdate retrieves the balance with a row lock.
func (s *PostgresLedgerStore) GetBalanceForUpdate(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	return s.getBalance(ctx, userID, true)
}

func (s *PostgresLedgerStore) getBalance(ctx context.Context, userID uuid.UUID, forUpdate bool) (*domain.CreditBalance, error) {
	query := `
		SELECT user_id, free_allowance, purchased, updated_at
		FROM credit_balances
		WHERE user_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var balance domain.CreditBalance
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&balance.UserID,
		&balance.FreeAllowance,
		&balance.Purchased,
		&balance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBalanceNotFound
		}
		return nil, fmt.Errorf("failed to get credit balance: %w", MapError(err))
	}

	return &balance, nil
}

// CreateBalanceIfMissing inserts a zero balance row for the user when
// none exists yet.
func (s *PostgresLedgerStore) CreateBalanceIfMissing(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO credit_balances (user_id, free_allowance, purchased, updated_at)
		VALUES ($1, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create credit balance: %w", MapError(err))
	}
	return nil
}

// UpdateBalance persists new tier values for an existing balance row.
func (s *PostgresLedgerStore) UpdateBalance(ctx context.Context, balance *domain.CreditBalance) error {
	log := logger.FromContext(ctx)

	if balance.FreeAllowance < 0 || balance.Purchased < 0 {
		return fmt.Errorf("%w: balance tiers cannot be negative", store.ErrInvalidEntity)
	}

	query := `
		UPDATE credit_balances
		SET free_allowance = $1, purchased = $2, updated_at = $3
		WHERE user_id = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		balance.FreeAllowance,
		balance.Purchased,
		time.Now().UTC(),
		balance.UserID,
	)
	if err != nil {
		log.Error("failed to update credit balance",
			"user_id", balance.UserID,
			"error", err)
		return fmt.Errorf("failed to update credit balance: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrBalanceNotFound
	}
	return nil
}

// AppendTransaction appends a ledger transaction, returning false when a
// transaction with the same deterministic ID already exists.
func (s *PostgresLedgerStore) AppendTransaction(ctx context.Context, tx *domain.LedgerTransaction) (bool, error) {
	log := logger.FromContext(ctx)

	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO ledger_transactions
			(id, user_id, event_type, delta_free, delta_purchased, delta_exp, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.EventType,
		tx.DeltaFree,
		tx.DeltaPurchased,
		tx.DeltaExp,
		metadata,
		tx.CreatedAt,
	)
	if err != nil {
		log.Error("failed to append ledger transaction",
			"transaction_id", tx.ID,
			"user_id", tx.UserID,
			"event_type", tx.EventType,
			"error", err)
		return false, fmt.Errorf("failed to append ledger transaction: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		log.Debug("ledger transaction already recorded",
			"transaction_id", tx.ID,
			"event_type", tx.EventType)
		return false, nil
	}
	return true, nil
}

// GetTransaction retrieves a transaction by its deterministic ID.
func (s *PostgresLedgerStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.LedgerTransaction, error) {
	query := `
		SELECT id, user_id, event_type, delta_free, delta_purchased, delta_exp, metadata, created_at
		FROM ledger_transactions
		WHERE id = $1
	`

	var tx domain.LedgerTransaction
	var metadata []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tx.ID,
		&tx.UserID,
		&tx.EventType,
		&tx.DeltaFree,
		&tx.DeltaPurchased,
		&tx.DeltaExp,
		&metadata,
		&tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get ledger transaction: %w", MapError(err))
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}
	return &tx, nil
}
