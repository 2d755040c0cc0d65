// Package ledger implements the credit accounting service: two-tier
// balances spent in priority order, an append-only transaction log, and
// deduct/refund/grant operations that are idempotent by deterministic
// transaction ID. A balance mutation and its log entry always commit in
// one database transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/store"
)

// Service provides credit ledger operations.
type Service interface {
	// CheckSpendable returns the user's total spendable credit. A missing
	// balance row fails closed and reports zero.
	CheckSpendable(ctx context.Context, userID uuid.UUID) (int, error)

	// GetBalance returns the user's balance with its tier split. A
	// missing row reads as a zero balance, not an error.
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error)

	// Deduct charges one credit for the given job, consuming the free
	// allowance before purchased credit. Returns
	// domain.ErrInsufficientCredit when no tier can cover it. A repeated
	// deduct for the same job is a no-op by construction of the
	// transaction ID.
	Deduct(ctx context.Context, userID, jobID uuid.UUID) error

	// Refund reverses the deduct recorded for the job, restoring the same
	// source it was taken from. When no deduct was ever recorded
	// (rejection and system-error paths never charge) it is a no-op, so
	// it can never manufacture balance.
	Refund(ctx context.Context, userID, jobID uuid.UUID, reason string) error

	// Grant credits the user outside the reading spend path (rewards,
	// top-ups). The transaction ID is deterministic from eventType and
	// ref, making repeat grants for the same cause no-ops. Reports
	// whether the grant was applied.
	Grant(ctx context.Context, userID uuid.UUID, kind domain.CreditSourceKind, amount int,
		eventType string, ref uuid.UUID, metadata map[string]string) (bool, error)
}

// ServiceError wraps errors from the ledger service with context.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("ledger %s failed: %s", e.Operation, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

type serviceImpl struct {
	ledgerStore store.LedgerStore
	logger      *slog.Logger
}

// NewService creates a ledger Service.
func NewService(ledgerStore store.LedgerStore, logger *slog.Logger) (Service, error) {
	if ledgerStore == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "ledgerStore cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &serviceImpl{
		ledgerStore: ledgerStore,
		logger:      logger.With("component", "ledger_service"),
	}, nil
}

func (s *serviceImpl) CheckSpendable(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.ledgerStore.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, &ServiceError{Operation: "check_spendable", Message: "failed to load balance", Err: err}
	}
	return balance.Spendable(), nil
}

func (s *serviceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	balance, err := s.ledgerStore.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrBalanceNotFound) {
			return &domain.CreditBalance{UserID: userID}, nil
		}
		return nil, &ServiceError{Operation: "get_balance", Message: "failed to load balance", Err: err}
	}
	return balance, nil
}

func (s *serviceImpl) Deduct(ctx context.Context, userID, jobID uuid.UUID) error {
	return store.RunInTransaction(ctx, s.ledgerStore.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.ledgerStore.WithTx(tx)

		balance, err := txStore.GetBalanceForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrBalanceNotFound) {
				// No balance row means no spendable credit.
				return domain.ErrInsufficientCredit
			}
			return &ServiceError{Operation: "deduct", Message: "failed to lock balance", Err: err}
		}

		kind, err := balance.Debit(1)
		if err != nil {
			return err
		}

		entry := &domain.LedgerTransaction{
			ID:        domain.TransactionID(domain.EventReadingDeduct, jobID),
			UserID:    userID,
			EventType: domain.EventReadingDeduct,
			CreatedAt: nowUTC(),
			Metadata:  map[string]string{"job_id": jobID.String()},
		}
		switch kind {
		case domain.CreditSourceFree:
			entry.DeltaFree = -1
		case domain.CreditSourcePurchased:
			entry.DeltaPurchased = -1
		}

		applied, err := txStore.AppendTransaction(ctx, entry)
		if err != nil {
			return &ServiceError{Operation: "deduct", Message: "failed to append transaction", Err: err}
		}
		if !applied {
			// This job was already charged; leave the balance alone.
			s.logger.Debug("deduct already recorded for job",
				"user_id", userID,
				"job_id", jobID)
			return nil
		}

		if err := txStore.UpdateBalance(ctx, balance); err != nil {
			return &ServiceError{Operation: "deduct", Message: "failed to update balance", Err: err}
		}

		s.logger.Info("credit deducted",
			"user_id", userID,
			"job_id", jobID,
			"source", kind)
		return nil
	})
}

func (s *serviceImpl) Refund(ctx context.Context, userID, jobID uuid.UUID, reason string) error {
	return store.RunInTransaction(ctx, s.ledgerStore.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.ledgerStore.WithTx(tx)

		original, err := txStore.GetTransaction(ctx, domain.TransactionID(domain.EventReadingDeduct, jobID))
		if err != nil {
			if errors.Is(err, store.ErrTransactionNotFound) {
				// Nothing was ever charged for this job.
				s.logger.Debug("refund skipped, no deduct recorded",
					"user_id", userID,
					"job_id", jobID)
				return nil
			}
			return &ServiceError{Operation: "refund", Message: "failed to look up deduct transaction", Err: err}
		}

		balance, err := txStore.GetBalanceForUpdate(ctx, userID)
		if err != nil {
			return &ServiceError{Operation: "refund", Message: "failed to lock balance", Err: err}
		}

		entry := &domain.LedgerTransaction{
			ID:             domain.TransactionID(domain.EventReadingRefund, jobID),
			UserID:         userID,
			EventType:      domain.EventReadingRefund,
			DeltaFree:      -original.DeltaFree,
			DeltaPurchased: -original.DeltaPurchased,
			CreatedAt:      nowUTC(),
			Metadata: map[string]string{
				"job_id": jobID.String(),
				"reason": reason,
			},
		}

		applied, err := txStore.AppendTransaction(ctx, entry)
		if err != nil {
			return &ServiceError{Operation: "refund", Message: "failed to append transaction", Err: err}
		}
		if !applied {
			// Already refunded once; a second refund must not pay twice.
			return nil
		}

		balance.Credit(domain.CreditSourceFree, entry.DeltaFree)
		balance.Credit(domain.CreditSourcePurchased, entry.DeltaPurchased)

		if err := txStore.UpdateBalance(ctx, balance); err != nil {
			return &ServiceError{Operation: "refund", Message: "failed to update balance", Err: err}
		}

		s.logger.Info("credit refunded",
			"user_id", userID,
			"job_id", jobID,
			"reason", reason)
		return nil
	})
}

func (s *serviceImpl) Grant(ctx context.Context, userID uuid.UUID, kind domain.CreditSourceKind, amount int,
	eventType string, ref uuid.UUID, metadata map[string]string) (bool, error) {
	if amount <= 0 {
		return false, &ServiceError{Operation: "grant", Message: "amount must be positive"}
	}

	var granted bool
	err := store.RunInTransaction(ctx, s.ledgerStore.DB(), func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.ledgerStore.WithTx(tx)

		// A user who never spent or received credit has no balance row
		// yet. The grant must not depend on one existing.
		if err := txStore.CreateBalanceIfMissing(ctx, userID); err != nil {
			return &ServiceError{Operation: "grant", Message: "failed to ensure balance row", Err: err}
		}

		balance, err := txStore.GetBalanceForUpdate(ctx, userID)
		if err != nil {
			return &ServiceError{Operation: "grant", Message: "failed to lock balance", Err: err}
		}

		entry := &domain.LedgerTransaction{
			ID:        domain.TransactionID(eventType, ref),
			UserID:    userID,
			EventType: eventType,
			CreatedAt: nowUTC(),
			Metadata:  metadata,
		}
		switch kind {
		case domain.CreditSourceFree:
			entry.DeltaFree = amount
		default:
			entry.DeltaPurchased = amount
		}

		applied, err := txStore.AppendTransaction(ctx, entry)
		if err != nil {
			return &ServiceError{Operation: "grant", Message: "failed to append transaction", Err: err}
		}
		if !applied {
			return nil
		}

		balance.Credit(kind, amount)
		if err := txStore.UpdateBalance(ctx, balance); err != nil {
			return &ServiceError{Operation: "grant", Message: "failed to update balance", Err: err}
		}

		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
