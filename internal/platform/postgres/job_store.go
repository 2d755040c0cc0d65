package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/platform/logger"
	"github.com/veilmoth/arcana-api/internal/store"
)

// psql builds queries with PostgreSQL-style $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// jobColumns is the column list shared by every job select.
var jobColumns = []string{
	"id", "user_id", "question", "type", "status", "answer",
	"error_message", "processing_started_at", "processing_completed_at",
	"created_at", "updated_at",
}

// PostgresJobStore implements the store.ReadingJobStore interface using
// PostgreSQL. The conditional updates in ClaimNextPending, MarkCompleted
// and MarkFailed are the pipeline's only concurrency-control primitive:
// a transition that matches zero rows means another worker got there
// first, and the caller simply moves on.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// WithTx returns a new ReadingJobStore bound to the given transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.ReadingJobStore {
	return &PostgresJobStore{db: tx}
}

// CreatePending saves a new pending job.
func (s *PostgresJobStore) CreatePending(ctx context.Context, job *domain.ReadingJob) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	if job.Status != domain.ReadingStatusPending {
		return fmt.Errorf("%w: new jobs must be pending", store.ErrInvalidEntity)
	}

	query := `
		INSERT INTO reading_jobs (id, user_id, question, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.Question,
		job.Type,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save reading job",
			"job_id", job.ID,
			"user_id", job.UserID,
			"error", err)
		return fmt.Errorf("failed to save reading job: %w", MapError(err))
	}

	return nil
}

// GetByID retrieves a job by its ID.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReadingJob, error) {
	query, args, err := psql.Select(jobColumns...).
		From("reading_jobs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build job query: %w", err)
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get reading job: %w", MapError(err))
	}
	return job, nil
}

// ListByUser retrieves the user's most recent jobs.
func (s *PostgresJobStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ReadingJob, error) {
	query, args, err := psql.Select(jobColumns...).
		From("reading_jobs").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build job list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reading jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.ReadingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reading job rows: %w", err)
	}
	return jobs, nil
}

// ClaimNextPending claims up to n pending jobs, oldest first. Each claim
// is a conditional update guarded on status = pending; claims that match
// zero rows lost the race and are dropped from the result.
func (s *PostgresJobStore) ClaimNextPending(ctx context.Context, n int) ([]*domain.ReadingJob, error) {
	log := logger.FromContext(ctx)

	query, args, err := psql.Select(jobColumns...).
		From("reading_jobs").
		Where(sq.Eq{"status": domain.ReadingStatusPending}).
		OrderBy("created_at ASC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build claim candidate query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", MapError(err))
	}

	var candidates []*domain.ReadingJob
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan pending job row: %w", scanErr)
		}
		candidates = append(candidates, job)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating pending job rows: %w", err)
	}
	_ = rows.Close()

	claimUpdate := `
		UPDATE reading_jobs
		SET status = $1, processing_started_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	var claimed []*domain.ReadingJob
	for _, job := range candidates {
		now := time.Now().UTC()

		result, err := s.db.ExecContext(ctx, claimUpdate,
			domain.ReadingStatusProcessing,
			now,
			job.ID,
			domain.ReadingStatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to claim reading job: %w", MapError(err))
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected for claim: %w", err)
		}
		if affected == 0 {
			// Another worker claimed it between select and update.
			log.Debug("lost claim race for job", "job_id", job.ID)
			continue
		}

		job.Status = domain.ReadingStatusProcessing
		job.ProcessingStartedAt = &now
		job.UpdatedAt = now
		claimed = append(claimed, job)
	}

	return claimed, nil
}

// MarkCompleted transitions a processing job to completed with its answer.
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, answer *domain.ReadingAnswer) (bool, error) {
	payload, err := json.Marshal(answer)
	if err != nil {
		return false, fmt.Errorf("failed to marshal reading answer: %w", err)
	}

	query := `
		UPDATE reading_jobs
		SET status = $1, answer = $2, processing_completed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return s.finish(ctx, query,
		domain.ReadingStatusCompleted, payload, time.Now().UTC(), id, domain.ReadingStatusProcessing)
}

// MarkFailed transitions a processing job to failed with the given message.
func (s *PostgresJobStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	query := `
		UPDATE reading_jobs
		SET status = $1, error_message = $2, processing_completed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return s.finish(ctx, query,
		domain.ReadingStatusFailed, message, time.Now().UTC(), id, domain.ReadingStatusProcessing)
}

// finish runs a terminal-state conditional update and reports whether it
// applied. Zero rows affected is the "already handled" no-op, not an error.
func (s *PostgresJobStore) finish(ctx context.Context, query string, args ...any) (bool, error) {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		log.Warn("job status transition skipped, job not in expected state")
		return false, nil
	}
	return true, nil
}

// CountByStatus returns job counts grouped by status.
func (s *PostgresJobStore) CountByStatus(ctx context.Context) (map[domain.ReadingStatus]int, error) {
	query, args, err := psql.Select("status", "COUNT(*)").
		From("reading_jobs").
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build status count query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.ReadingStatus]int)
	for rows.Next() {
		var status domain.ReadingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status count rows: %w", err)
	}
	return counts, nil
}

// CountCompletedByUser returns how many jobs the user has completed.
func (s *PostgresJobStore) CountCompletedByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("reading_jobs").
		Where(sq.Eq{"user_id": userID, "status": domain.ReadingStatusCompleted}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build completed count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed jobs: %w", MapError(err))
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ReadingJob, error) {
	var job domain.ReadingJob
	var answer []byte
	var errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Question,
		&job.Type,
		&job.Status,
		&answer,
		&errorMessage,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(answer) > 0 {
		var parsed domain.ReadingAnswer
		if err := json.Unmarshal(answer, &parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reading answer: %w", err)
		}
		job.Answer = &parsed
	}
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		job.ProcessingStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.ProcessingCompletedAt = &t
	}

	return &job, nil
}
