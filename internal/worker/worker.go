// Package worker implements the batch worker that drains the reading job
// backlog. One logical loop claims a batch, drives each job through the
// workflow sequentially to bound provider concurrency, settles credits,
// and fires the referral trigger as an isolated side effect. Correctness
// under concurrent workers comes entirely from the job store's atomic
// claim; the worker holds no locks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/events"
	"github.com/veilmoth/arcana-api/internal/ledger"
	"github.com/veilmoth/arcana-api/internal/platform/metrics"
	"github.com/veilmoth/arcana-api/internal/store"
	"github.com/veilmoth/arcana-api/internal/workflow"
)

// systemFailureMessage is what a user sees on a system error. The real
// cause goes to the log, never to the job row.
const systemFailureMessage = "We couldn't complete your reading this time. Your credits were not charged. Please try again."

// Config tunes the worker loop.
type Config struct {
	// BatchSize is the maximum number of jobs claimed per iteration.
	BatchSize int

	// PollInterval is the sleep between iterations.
	PollInterval time.Duration

	// JobDelay paces consecutive jobs within a batch.
	JobDelay time.Duration

	// MaxConsecutiveFailures bounds batch-level failures before the loop
	// stops and drops the health signal for the supervisor to act on.
	MaxConsecutiveFailures int

	// BackoffCap limits the exponential backoff delay.
	BackoffCap time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:              5,
		PollInterval:           10 * time.Second,
		JobDelay:               500 * time.Millisecond,
		MaxConsecutiveFailures: 5,
		BackoffCap:             5 * time.Minute,
	}
}

// WorkflowRunner is the slice of the workflow the worker needs.
type WorkflowRunner interface {
	Run(ctx context.Context, req workflow.Request) workflow.Result
}

// ReferralTrigger is the slice of the referral package the worker needs.
type ReferralTrigger interface {
	Process(ctx context.Context, userID uuid.UUID) error
}

// BatchWorker polls the job store and processes claimed jobs.
type BatchWorker struct {
	jobs     store.ReadingJobStore
	wf       WorkflowRunner
	ledger   ledger.Service
	referral ReferralTrigger
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	healthy    atomic.Bool

	// wake lets the submission boundary nudge an immediate poll.
	wake chan struct{}
}

// New creates a BatchWorker.
func New(
	jobs store.ReadingJobStore,
	wf WorkflowRunner,
	ledgerService ledger.Service,
	referralTrigger ReferralTrigger,
	cfg Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*BatchWorker, error) {
	if jobs == nil {
		return nil, errors.New("job store cannot be nil")
	}
	if wf == nil {
		return nil, errors.New("workflow cannot be nil")
	}
	if ledgerService == nil {
		return nil, errors.New("ledger service cannot be nil")
	}
	if m == nil {
		return nil, errors.New("metrics cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &BatchWorker{
		jobs:       jobs,
		wf:         wf,
		ledger:     ledgerService,
		referral:   referralTrigger,
		config:     cfg,
		logger:     logger.With("component", "batch_worker"),
		metrics:    m,
		ctx:        ctx,
		cancelFunc: cancel,
		wake:       make(chan struct{}, 1),
	}, nil
}

// Start launches the worker loop.
func (w *BatchWorker) Start() {
	w.healthy.Store(true)
	w.metrics.WorkerHealthy.Set(1)

	w.wg.Add(1)
	go w.run()
}

// Stop cancels the loop and waits for in-flight work, including
// dispatched side effects.
func (w *BatchWorker) Stop() {
	w.cancelFunc()
	w.wg.Wait()
}

// Healthy reports whether the loop is still running. It is the readiness
// signal a supervisor should watch: once false, the process needs a
// restart, the worker will not self-heal.
func (w *BatchWorker) Healthy() bool {
	return w.healthy.Load()
}

// Nudge requests an immediate poll. Safe to call from any goroutine;
// redundant nudges collapse into one.
func (w *BatchWorker) Nudge() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// HandleEvent implements events.Handler: a submitted reading nudges the
// loop so users don't wait out the poll interval.
func (w *BatchWorker) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type == events.TypeReadingSubmitted {
		w.Nudge()
	}
	return nil
}

func (w *BatchWorker) run() {
	defer w.wg.Done()
	defer func() {
		w.healthy.Store(false)
		w.metrics.WorkerHealthy.Set(0)
	}()

	w.logger.Info("batch worker started",
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval)

	consecutiveFailures := 0
	for {
		processed, err := w.ProcessBatch(w.ctx)

		var delay time.Duration
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}

			consecutiveFailures++
			w.metrics.BatchFailures.Inc()
			w.logger.Error("batch iteration failed",
				"error", err,
				"consecutive_failures", consecutiveFailures)

			if consecutiveFailures >= w.config.MaxConsecutiveFailures {
				w.logger.Error("too many consecutive batch failures, stopping worker",
					"max_consecutive_failures", w.config.MaxConsecutiveFailures)
				return
			}
			delay = backoffDelay(w.config.PollInterval, consecutiveFailures, w.config.BackoffCap)
		} else {
			consecutiveFailures = 0
			delay = w.config.PollInterval
			if processed > 0 {
				w.logger.Info("batch processed", "jobs", processed)
			}
		}

		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		case <-time.After(delay):
		}
	}
}

// ProcessBatch claims and processes one batch of pending jobs. It is
// exported so the operational trigger can run a pass synchronously; that
// path is safe alongside the loop because every claim is atomic.
func (w *BatchWorker) ProcessBatch(ctx context.Context) (int, error) {
	claimed, err := w.jobs.ClaimNextPending(ctx, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	for i, job := range claimed {
		if i > 0 && w.config.JobDelay > 0 {
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-time.After(w.config.JobDelay):
			}
		}
		w.processJob(ctx, job)
	}

	return len(claimed), nil
}

// processJob drives one claimed job to a terminal state. Jobs are never
// charged unless the workflow succeeded, and a charge that cannot be
// followed by a completed mark is refunded.
func (w *BatchWorker) processJob(ctx context.Context, job *domain.ReadingJob) {
	logger := w.logger.With("job_id", job.ID, "user_id", job.UserID)
	start := time.Now()

	result := w.wf.Run(ctx, workflow.Request{
		Question: job.Question,
		UserID:   job.UserID,
		Type:     job.Type,
	})
	w.metrics.JobDuration.Observe(time.Since(start).Seconds())

	switch {
	case result.Err != nil:
		logger.Error("workflow failed", "error", result.Err)
		w.markFailed(ctx, job, systemFailureMessage)
		w.metrics.JobsProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()

	case result.Rejected:
		logger.Info("question rejected by content policy",
			"reason", result.RejectionReason)
		w.markFailed(ctx, job, result.RejectionReason)
		w.metrics.JobsProcessed.WithLabelValues(metrics.OutcomeRejected).Inc()

	default:
		w.settle(ctx, job, result.Answer, logger)
	}
}

// settle charges for a delivered reading, marks the job completed, and
// dispatches the referral trigger.
func (w *BatchWorker) settle(ctx context.Context, job *domain.ReadingJob, answer *domain.ReadingAnswer, logger *slog.Logger) {
	if err := w.ledger.Deduct(ctx, job.UserID, job.ID); err != nil {
		// Nothing was charged: Deduct is atomic. Fail the job so the
		// user can resubmit once their balance allows it.
		logger.Error("failed to deduct credit for completed reading", "error", err)
		if errors.Is(err, domain.ErrInsufficientCredit) {
			w.markFailed(ctx, job, "Your credit balance changed while the reading was being prepared. Please top up and try again.")
		} else {
			w.markFailed(ctx, job, systemFailureMessage)
		}
		w.metrics.JobsProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
		return
	}

	applied, err := w.jobs.MarkCompleted(ctx, job.ID, answer)
	if err != nil || !applied {
		// Charged but could not deliver: reverse the charge. The refund
		// is idempotent, so a crash between these steps is also safe to
		// replay.
		if err != nil {
			logger.Error("failed to mark job completed", "error", err)
		} else {
			logger.Warn("job no longer in processing state, refunding charge")
		}
		if refundErr := w.ledger.Refund(ctx, job.UserID, job.ID, "completion could not be recorded"); refundErr != nil {
			logger.Error("failed to refund charge", "error", refundErr)
		}
		w.metrics.JobsProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
		return
	}

	w.metrics.CreditsDeducted.Inc()
	w.metrics.JobsProcessed.WithLabelValues(metrics.OutcomeCompleted).Inc()
	logger.Info("reading completed")

	w.dispatchReferral(job.UserID)
}

// markFailed records a terminal failure. A no-op (job already handled
// elsewhere) is logged and accepted.
func (w *BatchWorker) markFailed(ctx context.Context, job *domain.ReadingJob, message string) {
	applied, err := w.jobs.MarkFailed(ctx, job.ID, message)
	if err != nil {
		w.logger.Error("failed to mark job failed",
			"job_id", job.ID,
			"error", err)
		return
	}
	if !applied {
		w.logger.Warn("job already in terminal state", "job_id", job.ID)
	}
}

// dispatchReferral fires the referral trigger on its own goroutine with
// its own error boundary. Reward plumbing never blocks or fails the
// reading path.
func (w *BatchWorker) dispatchReferral(userID uuid.UUID) {
	if w.referral == nil {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				w.logger.Error("referral trigger panicked", "panic", p)
			}
		}()

		// Detached from the job context: the reward should survive a
		// worker shutdown that races the completion.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := w.referral.Process(ctx, userID); err != nil {
			w.logger.Error("referral trigger failed",
				"user_id", userID,
				"error", err)
		}
	}()
}

// backoffDelay computes interval * 2^failures, capped.
func backoffDelay(interval time.Duration, failures int, cap time.Duration) time.Duration {
	delay := interval
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	return delay
}
