package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/store"
)

func newMockJobStore(t *testing.T) (*PostgresJobStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresJobStore(db), mock
}

func jobRow(job *domain.ReadingJob) []driver.Value {
	return []driver.Value{
		job.ID.String(), job.UserID.String(), job.Question, string(job.Type), string(job.Status),
		nil, nil, nil, nil, job.CreatedAt, job.UpdatedAt,
	}
}

func pendingRows(jobs ...*domain.ReadingJob) *sqlmock.Rows {
	rows := sqlmock.NewRows(jobColumns)
	for _, job := range jobs {
		rows.AddRow(jobRow(job)...)
	}
	return rows
}

func newPendingJob(t *testing.T) *domain.ReadingJob {
	t.Helper()
	job, err := domain.NewReadingJob(uuid.New(), "What should I focus on this month?", domain.ReadingTypeGeneral)
	require.NoError(t, err)
	return job
}

func TestClaimNextPending_LostRaceDropsJob(t *testing.T) {
	s, mock := newMockJobStore(t)
	first := newPendingJob(t)
	second := newPendingJob(t)

	mock.ExpectQuery("SELECT (.+) FROM reading_jobs WHERE status =").
		WillReturnRows(pendingRows(first, second))

	// First claim wins its conditional update; the second matches zero
	// rows because another worker got there first.
	mock.ExpectExec("UPDATE reading_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reading_jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := s.ClaimNextPending(context.Background(), 5)
	require.NoError(t, err)

	require.Len(t, claimed, 1)
	assert.Equal(t, first.ID, claimed[0].ID)
	assert.Equal(t, domain.ReadingStatusProcessing, claimed[0].Status)
	assert.NotNil(t, claimed[0].ProcessingStartedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimNextPending_EmptyBacklog(t *testing.T) {
	s, mock := newMockJobStore(t)

	mock.ExpectQuery("SELECT (.+) FROM reading_jobs WHERE status =").
		WillReturnRows(pendingRows())

	claimed, err := s.ClaimNextPending(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestMarkCompleted_NoopWhenNotProcessing(t *testing.T) {
	s, mock := newMockJobStore(t)

	mock.ExpectExec("UPDATE reading_jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := s.MarkCompleted(context.Background(), uuid.New(), &domain.ReadingAnswer{})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMarkFailed_Applied(t *testing.T) {
	s, mock := newMockJobStore(t)

	mock.ExpectExec("UPDATE reading_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := s.MarkFailed(context.Background(), uuid.New(), "rejected")
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestGetByID_NotFound(t *testing.T) {
	s, mock := newMockJobStore(t)

	mock.ExpectQuery("SELECT (.+) FROM reading_jobs").
		WillReturnRows(pendingRows())

	_, err := s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestCreatePending_RejectsNonPendingJob(t *testing.T) {
	s, _ := newMockJobStore(t)
	job := newPendingJob(t)
	job.Status = domain.ReadingStatusProcessing

	err := s.CreatePending(context.Background(), job)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestCountByStatus(t *testing.T) {
	s, mock := newMockJobStore(t)

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).
			AddRow("completed", 7))

	counts, err := s.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.ReadingStatusPending])
	assert.Equal(t, 7, counts[domain.ReadingStatusCompleted])
	assert.Equal(t, 0, counts[domain.ReadingStatusFailed])
}

func TestScanJob_ParsesAnswer(t *testing.T) {
	s, mock := newMockJobStore(t)
	job := newPendingJob(t)
	completedAt := time.Now().UTC()

	answerJSON := []byte(`{"analysis":{"mood":"calm","topic":"life","period":"soon"},` +
		`"cards":[{"card_id":1,"name":"The Fool","position":1,"reversed":false,"meaning":"m","keywords":["k"]}],` +
		`"reading":{"overview":"o","card_insights":[{"card_id":1,"card_name":"The Fool","insight":"i"}],"guidance":"g","outlook":"ol"}}`)

	rows := sqlmock.NewRows(jobColumns).AddRow(
		job.ID.String(), job.UserID.String(), job.Question, string(job.Type), string(domain.ReadingStatusCompleted),
		answerJSON, nil, completedAt, completedAt, job.CreatedAt, job.UpdatedAt,
	)
	mock.ExpectQuery("SELECT (.+) FROM reading_jobs").WillReturnRows(rows)

	got, err := s.GetByID(context.Background(), job.ID)
	require.NoError(t, err)

	require.NotNil(t, got.Answer)
	assert.Equal(t, "calm", got.Answer.Analysis.Mood)
	require.Len(t, got.Answer.Cards, 1)
	assert.Equal(t, "The Fool", got.Answer.Cards[0].Name)
	assert.NoError(t, got.Answer.Reading.Validate())
	require.NotNil(t, got.ProcessingCompletedAt)
}
