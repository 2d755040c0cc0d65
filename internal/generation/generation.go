package generation

import (
	"context"

	"github.com/veilmoth/arcana-api/internal/domain"
)

// Verdict is the classifier's judgment on a raw question.
type Verdict struct {
	IsValid bool
	// Reason is the human-readable rejection reason, set when IsValid is
	// false. It is surfaced to the user verbatim.
	Reason string
}

// QuestionClassifier screens a raw question against content policy.
type QuestionClassifier interface {
	// Classify returns the policy verdict for the question. An error
	// means the classifier itself failed, not that the question was
	// rejected.
	Classify(ctx context.Context, question string) (Verdict, error)
}

// QuestionAnalyzer derives the structured analysis used to steer
// composition.
type QuestionAnalyzer interface {
	// Analyze extracts mood, topic and period from the question.
	// Implementations must return ErrInvalidResponse (wrapped) when the
	// model output is missing any required field.
	Analyze(ctx context.Context, question string) (domain.QuestionAnalysis, error)
}

// ComposeInput carries everything the composer needs for one reading.
type ComposeInput struct {
	Question string
	Type     domain.ReadingType
	Analysis domain.QuestionAnalysis
	Cards    []domain.DrawnCard

	// Provider selects which configured model composes the reading. An
	// empty value means the primary provider.
	Provider string
}

// The provider hints understood by composers.
const (
	ProviderPrimary  = ""
	ProviderFallback = "fallback"
)

// ReadingComposer writes the final structured reading.
type ReadingComposer interface {
	// Compose builds a reading from the question, its analysis and the
	// drawn cards. The result must pass domain.ComposedReading.Validate;
	// implementations return the raw composed value and leave structural
	// acceptance to the caller so the fallback decision stays in one place.
	Compose(ctx context.Context, input ComposeInput) (*domain.ComposedReading, error)
}
