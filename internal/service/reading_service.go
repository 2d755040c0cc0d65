// Package service contains the application services sitting between the
// HTTP boundary and the stores. Services own validation at the
// submission boundary, transaction orchestration, and the mapping of
// store errors to service-level sentinels.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/events"
	"github.com/veilmoth/arcana-api/internal/ledger"
	"github.com/veilmoth/arcana-api/internal/store"
)

// Common sentinel errors for ReadingService.
var (
	// ErrReadingNotFound indicates the reading does not exist or belongs
	// to another user.
	ErrReadingNotFound = errors.New("reading not found")
)

// ServiceError wraps errors from the reading service with context.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reading service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("reading service %s failed: %s", e.Operation, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// SubmitResult is returned by Submit.
type SubmitResult struct {
	Job           *domain.ReadingJob
	EstimatedWait time.Duration
}

// ReadingService provides reading-related operations.
type ReadingService interface {
	// Submit validates and creates a pending reading job, then nudges
	// processing. Rejects with domain.ErrInvalidQuestionLength,
	// domain.ErrContentRejected or domain.ErrInsufficientCredit before
	// any job is created.
	Submit(ctx context.Context, userID uuid.UUID, question string, readingType domain.ReadingType) (*SubmitResult, error)

	// GetReading retrieves one of the user's readings.
	GetReading(ctx context.Context, userID, jobID uuid.UUID) (*domain.ReadingJob, error)

	// ListReadings retrieves the user's most recent readings.
	ListReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ReadingJob, error)

	// GetBalance returns the user's credit balance; a missing row reads
	// as zero.
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error)

	// GetProcessingStats returns job counts per status.
	GetProcessingStats(ctx context.Context) (map[domain.ReadingStatus]int, error)
}

type readingServiceImpl struct {
	jobs          store.ReadingJobStore
	ledgerService ledger.Service
	emitter       events.Emitter
	perJobPacing  time.Duration
	logger        *slog.Logger
}

// NewReadingService creates a ReadingService. perJobPacing is the rough
// per-job processing allowance used for wait estimates.
func NewReadingService(
	jobs store.ReadingJobStore,
	ledgerService ledger.Service,
	emitter events.Emitter,
	perJobPacing time.Duration,
	logger *slog.Logger,
) (ReadingService, error) {
	if jobs == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "jobs store cannot be nil"}
	}
	if ledgerService == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "ledger service cannot be nil"}
	}
	if emitter == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "event emitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &readingServiceImpl{
		jobs:          jobs,
		ledgerService: ledgerService,
		emitter:       emitter,
		perJobPacing:  perJobPacing,
		logger:        logger.With("component", "reading_service"),
	}, nil
}

func (s *readingServiceImpl) Submit(
	ctx context.Context,
	userID uuid.UUID,
	question string,
	readingType domain.ReadingType,
) (*SubmitResult, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}

	// Cheap local screen before a job (and later an AI call) exists. The
	// classifier stage remains the authoritative check.
	if reason, blocked := screenQuestion(question); blocked {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentRejected, reason)
	}

	spendable, err := s.ledgerService.CheckSpendable(ctx, userID)
	if err != nil {
		return nil, &ServiceError{Operation: "submit", Message: "failed to check balance", Err: err}
	}
	if spendable < 1 {
		return nil, domain.ErrInsufficientCredit
	}

	job, err := domain.NewReadingJob(userID, question, readingType)
	if err != nil {
		return nil, err
	}

	if err := s.jobs.CreatePending(ctx, job); err != nil {
		s.logger.Error("failed to create reading job",
			"user_id", userID,
			"error", err)
		return nil, &ServiceError{Operation: "submit", Message: "failed to save reading job", Err: err}
	}

	s.logger.Info("reading job submitted",
		"job_id", job.ID,
		"user_id", userID,
		"type", readingType)

	// Eager trigger: best effort, the interval poll covers a lost event.
	if err := s.emitter.EmitEvent(ctx, events.NewReadingSubmitted(userID, job.ID)); err != nil {
		s.logger.Warn("failed to emit submission event",
			"job_id", job.ID,
			"error", err)
	}

	return &SubmitResult{
		Job:           job,
		EstimatedWait: s.estimateWait(ctx),
	}, nil
}

// estimateWait sizes the wait by backlog depth. Estimation failures
// degrade to a single-job estimate rather than failing the submission.
func (s *readingServiceImpl) estimateWait(ctx context.Context) time.Duration {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		s.logger.Warn("failed to count jobs for wait estimate", "error", err)
		return s.perJobPacing
	}
	backlog := counts[domain.ReadingStatusPending] + counts[domain.ReadingStatusProcessing]
	return time.Duration(backlog+1) * s.perJobPacing
}

func (s *readingServiceImpl) GetReading(ctx context.Context, userID, jobID uuid.UUID) (*domain.ReadingJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrReadingNotFound
		}
		return nil, &ServiceError{Operation: "get_reading", Message: "failed to load reading", Err: err}
	}
	if job.UserID != userID {
		// Scoped per user: another user's reading is indistinguishable
		// from a missing one.
		return nil, ErrReadingNotFound
	}
	return job, nil
}

func (s *readingServiceImpl) ListReadings(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ReadingJob, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	jobs, err := s.jobs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, &ServiceError{Operation: "list_readings", Message: "failed to list readings", Err: err}
	}
	return jobs, nil
}

func (s *readingServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	balance, err := s.ledgerService.GetBalance(ctx, userID)
	if err != nil {
		return nil, &ServiceError{Operation: "get_balance", Message: "failed to load balance", Err: err}
	}
	return balance, nil
}

func (s *readingServiceImpl) GetProcessingStats(ctx context.Context) (map[domain.ReadingStatus]int, error) {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, &ServiceError{Operation: "get_stats", Message: "failed to count jobs", Err: err}
	}
	return counts, nil
}
