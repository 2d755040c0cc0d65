package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
)

// ReadingJobStore defines the interface for reading job persistence.
// The status column is the single source of truth for job ownership:
// claiming and finishing jobs are conditional updates, and a transition
// that matches zero rows means another worker already handled the job.
type ReadingJobStore interface {
	// CreatePending saves a new pending job to the store.
	// Returns validation errors from the domain job if data is invalid.
	CreatePending(ctx context.Context, job *domain.ReadingJob) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReadingJob, error)

	// ListByUser retrieves the user's most recent jobs, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ReadingJob, error)

	// ClaimNextPending atomically transitions up to n pending jobs,
	// oldest first, to processing and returns the claimed jobs with
	// ProcessingStartedAt stamped. Jobs another worker claimed in the
	// meantime are silently dropped from the result.
	ClaimNextPending(ctx context.Context, n int) ([]*domain.ReadingJob, error)

	// MarkCompleted transitions a processing job to completed and stores
	// its answer. Returns false when the job was not in processing state,
	// which callers treat as "already handled", not as an error.
	MarkCompleted(ctx context.Context, id uuid.UUID, answer *domain.ReadingAnswer) (bool, error)

	// MarkFailed transitions a processing job to failed with the given
	// message. Same no-op semantics as MarkCompleted.
	MarkFailed(ctx context.Context, id uuid.UUID, message string) (bool, error)

	// CountByStatus returns job counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.ReadingStatus]int, error)

	// CountCompletedByUser returns how many jobs the user has completed.
	CountCompletedByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// WithTx returns a new ReadingJobStore instance that uses the
	// provided transaction.
	WithTx(tx *sql.Tx) ReadingJobStore
}
