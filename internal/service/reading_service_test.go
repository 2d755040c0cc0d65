package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/events"
	"github.com/veilmoth/arcana-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeJobStore is an in-memory store.ReadingJobStore for service tests.
type fakeJobStore struct {
	jobs      map[uuid.UUID]*domain.ReadingJob
	counts    map[domain.ReadingStatus]int
	lastLimit int
	createErr error
	countsErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:   make(map[uuid.UUID]*domain.ReadingJob),
		counts: make(map[domain.ReadingStatus]int),
	}
}

func (f *fakeJobStore) CreatePending(ctx context.Context, job *domain.ReadingJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReadingJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ReadingJob, error) {
	f.lastLimit = limit
	var out []*domain.ReadingJob
	for _, job := range f.jobs {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	return out, nil
}

func (f *fakeJobStore) ClaimNextPending(ctx context.Context, n int) ([]*domain.ReadingJob, error) {
	return nil, nil
}

func (f *fakeJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, answer *domain.ReadingAnswer) (bool, error) {
	return false, nil
}

func (f *fakeJobStore) MarkFailed(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	return false, nil
}

func (f *fakeJobStore) CountByStatus(ctx context.Context) (map[domain.ReadingStatus]int, error) {
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	return f.counts, nil
}

func (f *fakeJobStore) CountCompletedByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeJobStore) WithTx(tx *sql.Tx) store.ReadingJobStore { return f }

// stubLedger reports a configurable spendable amount.
type stubLedger struct {
	spendable int
	balance   *domain.CreditBalance
	err       error
}

func (s *stubLedger) CheckSpendable(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.spendable, s.err
}

func (s *stubLedger) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	if s.balance != nil {
		return s.balance, nil
	}
	return &domain.CreditBalance{UserID: userID}, s.err
}

func (s *stubLedger) Deduct(ctx context.Context, userID, jobID uuid.UUID) error { return nil }

func (s *stubLedger) Refund(ctx context.Context, userID, jobID uuid.UUID, reason string) error {
	return nil
}

func (s *stubLedger) Grant(ctx context.Context, userID uuid.UUID, kind domain.CreditSourceKind, amount int,
	eventType string, ref uuid.UUID, metadata map[string]string) (bool, error) {
	return false, nil
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	events []*events.Event
	err    error
}

func (r *recordingEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	r.events = append(r.events, event)
	return r.err
}

const testPacing = 10 * time.Second

func newTestService(t *testing.T, jobs *fakeJobStore, ledgerSvc *stubLedger, emitter *recordingEmitter) ReadingService {
	t.Helper()
	svc, err := NewReadingService(jobs, ledgerSvc, emitter, testPacing, testLogger())
	require.NoError(t, err)
	return svc
}

func TestSubmit_Success(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.counts[domain.ReadingStatusPending] = 2
	jobs.counts[domain.ReadingStatusProcessing] = 1
	emitter := &recordingEmitter{}
	svc := newTestService(t, jobs, &stubLedger{spendable: 1}, emitter)
	userID := uuid.New()

	result, err := svc.Submit(context.Background(), userID, "What does this autumn hold for my career?", domain.ReadingTypeCareer)
	require.NoError(t, err)

	assert.Equal(t, domain.ReadingStatusPending, result.Job.Status)
	assert.Equal(t, userID, result.Job.UserID)
	require.Len(t, jobs.jobs, 1)

	// Backlog of 3 plus the new job, at 10s per job.
	assert.Equal(t, 4*testPacing, result.EstimatedWait)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, events.TypeReadingSubmitted, emitter.events[0].Type)
	assert.Equal(t, result.Job.ID, emitter.events[0].JobID)
}

func TestSubmit_QuestionLength(t *testing.T) {
	svc := newTestService(t, newFakeJobStore(), &stubLedger{spendable: 1}, &recordingEmitter{})

	_, err := svc.Submit(context.Background(), uuid.New(), "Why?", domain.ReadingTypeGeneral)
	assert.ErrorIs(t, err, domain.ErrInvalidQuestionLength)
}

func TestSubmit_BlockedContent(t *testing.T) {
	jobs := newFakeJobStore()
	svc := newTestService(t, jobs, &stubLedger{spendable: 1}, &recordingEmitter{})

	_, err := svc.Submit(context.Background(), uuid.New(),
		"Can you tell me the lottery numbers for next week?", domain.ReadingTypeGeneral)
	assert.ErrorIs(t, err, domain.ErrContentRejected)

	// Rejected before any job exists.
	assert.Empty(t, jobs.jobs)
}

func TestSubmit_InsufficientCredit(t *testing.T) {
	jobs := newFakeJobStore()
	svc := newTestService(t, jobs, &stubLedger{spendable: 0}, &recordingEmitter{})

	_, err := svc.Submit(context.Background(), uuid.New(),
		"What should I focus on this month?", domain.ReadingTypeGeneral)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredit)
	assert.Empty(t, jobs.jobs)
}

func TestSubmit_EmitFailureDoesNotFailSubmission(t *testing.T) {
	jobs := newFakeJobStore()
	emitter := &recordingEmitter{err: errors.New("no handlers")}
	svc := newTestService(t, jobs, &stubLedger{spendable: 1}, emitter)

	result, err := svc.Submit(context.Background(), uuid.New(),
		"What should I focus on this month?", domain.ReadingTypeGeneral)
	require.NoError(t, err)
	assert.NotNil(t, result.Job)
}

func TestGetReading_OwnerScoped(t *testing.T) {
	jobs := newFakeJobStore()
	svc := newTestService(t, jobs, &stubLedger{spendable: 1}, &recordingEmitter{})

	ownerID := uuid.New()
	job, err := domain.NewReadingJob(ownerID, "What should I focus on this month?", domain.ReadingTypeGeneral)
	require.NoError(t, err)
	jobs.jobs[job.ID] = job

	got, err := svc.GetReading(context.Background(), ownerID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	// Another user's reading is indistinguishable from a missing one.
	_, err = svc.GetReading(context.Background(), uuid.New(), job.ID)
	assert.ErrorIs(t, err, ErrReadingNotFound)

	_, err = svc.GetReading(context.Background(), ownerID, uuid.New())
	assert.ErrorIs(t, err, ErrReadingNotFound)
}

func TestListReadings_LimitClamped(t *testing.T) {
	jobs := newFakeJobStore()
	svc := newTestService(t, jobs, &stubLedger{spendable: 1}, &recordingEmitter{})
	userID := uuid.New()

	_, err := svc.ListReadings(context.Background(), userID, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, jobs.lastLimit)

	_, err = svc.ListReadings(context.Background(), userID, 500)
	require.NoError(t, err)
	assert.Equal(t, 20, jobs.lastLimit)

	_, err = svc.ListReadings(context.Background(), userID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, jobs.lastLimit)
}

func TestGetProcessingStats(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.counts[domain.ReadingStatusPending] = 4
	jobs.counts[domain.ReadingStatusCompleted] = 9
	svc := newTestService(t, jobs, &stubLedger{}, &recordingEmitter{})

	counts, err := svc.GetProcessingStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, counts[domain.ReadingStatusPending])
	assert.Equal(t, 9, counts[domain.ReadingStatusCompleted])
}

func TestScreenQuestion(t *testing.T) {
	reason, blocked := screenQuestion("Should I buy Winning Numbers today?")
	assert.True(t, blocked)
	assert.NotEmpty(t, reason)

	_, blocked = screenQuestion("What should I focus on this month?")
	assert.False(t, blocked)
}
