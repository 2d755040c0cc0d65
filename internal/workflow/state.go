package workflow

import (
	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
)

// State is the record threaded through the pipeline. Stages never mutate
// it; they return a Patch the orchestrator merges into a copy. Once Err
// is set or IsValid flips to false, no later stage runs.
type State struct {
	Question string
	UserID   uuid.UUID
	Type     domain.ReadingType

	IsValid          bool
	ValidationReason string

	Cards    []domain.DrawnCard
	Analysis *domain.QuestionAnalysis
	Reading  *domain.ComposedReading

	Err error
}

// Patch is the partial update one stage contributes. Nil fields leave the
// prior state untouched.
type Patch struct {
	Verdict  *verdictPatch
	Cards    []domain.DrawnCard
	Analysis *domain.QuestionAnalysis
	Reading  *domain.ComposedReading
}

type verdictPatch struct {
	IsValid bool
	Reason  string
}

// apply merges a patch into a copy of the state.
func (s State) apply(p Patch) State {
	next := s
	if p.Verdict != nil {
		next.IsValid = p.Verdict.IsValid
		next.ValidationReason = p.Verdict.Reason
	}
	if p.Cards != nil {
		next.Cards = p.Cards
	}
	if p.Analysis != nil {
		next.Analysis = p.Analysis
	}
	if p.Reading != nil {
		next.Reading = p.Reading
	}
	return next
}

// terminal reports whether the pipeline must stop before the next stage.
func (s State) terminal() bool {
	return s.Err != nil || !s.IsValid
}
