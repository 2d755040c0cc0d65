package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/generation"
)

// Request identifies one reading to generate.
type Request struct {
	Question string
	UserID   uuid.UUID
	Type     domain.ReadingType
}

// Result is the workflow contract with its caller. Exactly one of three
// shapes comes back:
//   - Rejected=true with RejectionReason: policy failure, never charged
//   - Err set: system failure, never charged, safe to resubmit
//   - Answer set: success, the caller must now charge
type Result struct {
	Rejected        bool
	RejectionReason string
	Err             error
	Answer          *domain.ReadingAnswer
}

// Workflow orchestrates the reading pipeline over injected providers.
type Workflow struct {
	classifier generation.QuestionClassifier
	analyzer   generation.QuestionAnalyzer
	composer   generation.ReadingComposer
	selector   *CardSelector
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a Workflow.
func New(
	classifier generation.QuestionClassifier,
	analyzer generation.QuestionAnalyzer,
	composer generation.ReadingComposer,
	selector *CardSelector,
	timeout time.Duration,
	logger *slog.Logger,
) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		classifier: classifier,
		analyzer:   analyzer,
		composer:   composer,
		selector:   selector,
		timeout:    timeout,
		logger:     logger.With("component", "workflow"),
	}
}

// stage is one step of the pipeline: a pure function of the prior state.
type stage struct {
	name string
	run  func(ctx context.Context, prior State) (Patch, error)
}

func (w *Workflow) stages() []stage {
	return []stage{
		{name: "validate", run: w.validate},
		{name: "select_cards", run: w.selectCards},
		{name: "analyze", run: w.analyze},
		{name: "compose", run: w.compose},
	}
}

// Run executes the pipeline for one request. The whole invocation races
// against the configured timeout; a deadline hit surfaces as a system
// error like any other stage failure.
func (w *Workflow) Run(ctx context.Context, req Request) Result {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	st := State{
		Question: req.Question,
		UserID:   req.UserID,
		Type:     req.Type,
		IsValid:  true,
	}

	for _, stg := range w.stages() {
		if st.terminal() {
			break
		}

		patch, err := w.runStage(ctx, stg, st)
		if err != nil {
			w.logger.Error("workflow stage failed",
				"stage", stg.name,
				"user_id", req.UserID,
				"error", err)
			st.Err = normalize(stg.name, err)
			break
		}
		st = st.apply(patch)
	}

	return resultFrom(st)
}

// runStage invokes one stage, converting a panic into a stage error so
// every failure reaches the caller through the same terminal field.
func (w *Workflow) runStage(ctx context.Context, stg stage, prior State) (patch Patch, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stage %s panicked: %v", stg.name, p)
		}
	}()

	return stg.run(ctx, prior)
}

func (w *Workflow) validate(ctx context.Context, prior State) (Patch, error) {
	verdict, err := w.classifier.Classify(ctx, prior.Question)
	if err != nil {
		return Patch{}, fmt.Errorf("classifier failed: %w", err)
	}
	return Patch{Verdict: &verdictPatch{IsValid: verdict.IsValid, Reason: verdict.Reason}}, nil
}

func (w *Workflow) selectCards(ctx context.Context, prior State) (Patch, error) {
	cards, err := w.selector.Draw(ctx)
	if err != nil {
		return Patch{}, fmt.Errorf("card selection failed: %w", err)
	}
	return Patch{Cards: cards}, nil
}

func (w *Workflow) analyze(ctx context.Context, prior State) (Patch, error) {
	analysis, err := w.analyzer.Analyze(ctx, prior.Question)
	if err != nil {
		return Patch{}, fmt.Errorf("question analysis failed: %w", err)
	}
	return Patch{Analysis: &analysis}, nil
}

// compose asks the primary provider for the reading and accepts it only
// if it is structurally complete. On a provider error or an incomplete
// reading it tries the fallback provider exactly once.
func (w *Workflow) compose(ctx context.Context, prior State) (Patch, error) {
	input := generation.ComposeInput{
		Question: prior.Question,
		Type:     prior.Type,
		Analysis: *prior.Analysis,
		Cards:    prior.Cards,
		Provider: generation.ProviderPrimary,
	}

	reading, primaryErr := w.composeOnce(ctx, input)
	if primaryErr == nil {
		return Patch{Reading: reading}, nil
	}

	w.logger.Warn("primary composer failed, trying fallback provider",
		"user_id", prior.UserID,
		"error", primaryErr)

	input.Provider = generation.ProviderFallback
	reading, fallbackErr := w.composeOnce(ctx, input)
	if fallbackErr != nil {
		return Patch{}, fmt.Errorf("composition failed on both providers: primary: %v; fallback: %w",
			primaryErr, fallbackErr)
	}
	return Patch{Reading: reading}, nil
}

func (w *Workflow) composeOnce(ctx context.Context, input generation.ComposeInput) (*domain.ComposedReading, error) {
	reading, err := w.composer.Compose(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := reading.Validate(); err != nil {
		return nil, err
	}
	return reading, nil
}

// normalize folds any stage failure into the single terminal error
// representation. Callers never see raw provider errors.
func normalize(stageName string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrSystemFailure, stageName, err)
}

func resultFrom(st State) Result {
	switch {
	case st.Err != nil:
		return Result{Err: st.Err}
	case !st.IsValid:
		return Result{Rejected: true, RejectionReason: st.ValidationReason}
	default:
		return Result{
			Answer: &domain.ReadingAnswer{
				Analysis: *st.Analysis,
				Cards:    st.Cards,
				Reading:  *st.Reading,
			},
		}
	}
}
