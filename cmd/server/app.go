package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/veilmoth/arcana-api/internal/config"
	"github.com/veilmoth/arcana-api/internal/events"
	"github.com/veilmoth/arcana-api/internal/ledger"
	"github.com/veilmoth/arcana-api/internal/platform/gemini"
	"github.com/veilmoth/arcana-api/internal/platform/metrics"
	"github.com/veilmoth/arcana-api/internal/platform/postgres"
	"github.com/veilmoth/arcana-api/internal/referral"
	"github.com/veilmoth/arcana-api/internal/service"
	"github.com/veilmoth/arcana-api/internal/store"
	"github.com/veilmoth/arcana-api/internal/worker"
	"github.com/veilmoth/arcana-api/internal/workflow"
)

// application holds the shared application dependencies so startup and
// shutdown manage them in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jobStore      store.ReadingJobStore
	ledgerStore   store.LedgerStore
	referralStore store.ReferralStore
	cardStore     store.CardStore

	ledgerService  ledger.Service
	readingService service.ReadingService

	eventEmitter *events.InMemoryEmitter
	worker       *worker.BatchWorker

	registry *prometheus.Registry
}

// newApplication wires every dependency. It accepts the core pieces
// that must exist before anything else: configuration, logger and the
// database pool.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.jobStore = postgres.NewPostgresJobStore(db)
	app.ledgerStore = postgres.NewPostgresLedgerStore(db)
	app.referralStore = postgres.NewPostgresReferralStore(db)
	app.cardStore = postgres.NewPostgresCardStore(db)

	provider, err := gemini.NewProvider(ctx, logger.With("component", "gemini"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model provider: %w", err)
	}
	logger.Info("model provider initialized",
		"classifier_model", cfg.LLM.ClassifierModel,
		"composer_model", cfg.LLM.ComposerModel)

	selector := workflow.NewCardSelector(app.cardStore)
	wf := workflow.New(
		provider,
		provider,
		provider,
		selector,
		time.Duration(cfg.Worker.WorkflowTimeoutSeconds)*time.Second,
		logger,
	)

	app.ledgerService, err = ledger.NewService(app.ledgerStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger service: %w", err)
	}

	referralTrigger, err := referral.NewTrigger(app.jobStore, app.referralStore, app.ledgerService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create referral trigger: %w", err)
	}

	app.registry = prometheus.NewRegistry()
	m := metrics.New(app.registry)

	app.worker, err = worker.New(
		app.jobStore,
		wf,
		app.ledgerService,
		referralTrigger,
		workerConfig(cfg.Worker),
		logger,
		m,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch worker: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEmitter(logger)
	app.eventEmitter.RegisterHandler(app.worker)

	app.readingService, err = service.NewReadingService(
		app.jobStore,
		app.ledgerService,
		app.eventEmitter,
		perJobPacing(cfg.Worker),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reading service: %w", err)
	}

	return app, nil
}

func workerConfig(cfg config.WorkerConfig) worker.Config {
	return worker.Config{
		BatchSize:              cfg.BatchSize,
		PollInterval:           time.Duration(cfg.PollIntervalSeconds) * time.Second,
		JobDelay:               time.Duration(cfg.JobDelayMillis) * time.Millisecond,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		BackoffCap:             time.Duration(cfg.BackoffCapSeconds) * time.Second,
	}
}

// perJobPacing is the rough time one queued job occupies the worker,
// used for submit-time wait estimates. The workflow timeout is the
// ceiling; most jobs finish well under it, so half of it plus the
// configured inter-job delay tracks reality closely enough.
func perJobPacing(cfg config.WorkerConfig) time.Duration {
	pacing := time.Duration(cfg.WorkflowTimeoutSeconds)*time.Second/2 +
		time.Duration(cfg.JobDelayMillis)*time.Millisecond
	if pacing <= 0 {
		pacing = 15 * time.Second
	}
	return pacing
}

// cleanup releases application resources in reverse dependency order.
func (app *application) cleanup() {
	app.worker.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", "error", err)
	}
}
