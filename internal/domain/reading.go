package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ReadingStatus represents the processing state of a reading job.
type ReadingStatus string

// Possible reading job status values. Transitions are monotonic:
// pending -> processing -> {completed | failed}. A job never revisits
// pending and terminal states are final.
const (
	ReadingStatusPending    ReadingStatus = "pending"
	ReadingStatusProcessing ReadingStatus = "processing"
	ReadingStatusCompleted  ReadingStatus = "completed"
	ReadingStatusFailed     ReadingStatus = "failed"
)

// ReadingType categorizes what a question asks about; it steers the
// composition prompt.
type ReadingType string

// Supported reading types.
const (
	ReadingTypeGeneral ReadingType = "general"
	ReadingTypeLove    ReadingType = "love"
	ReadingTypeCareer  ReadingType = "career"
	ReadingTypeDestiny ReadingType = "destiny"
)

// Question length bounds, counted in runes.
const (
	MinQuestionLength = 10
	MaxQuestionLength = 180
)

// Common validation errors for ReadingJob.
var (
	ErrEmptyReadingID        = errors.New("reading job ID cannot be empty")
	ErrEmptyReadingUserID    = errors.New("reading job user ID cannot be empty")
	ErrInvalidQuestionLength = errors.New("question length must be between 10 and 180 characters")
	ErrInvalidReadingType    = errors.New("invalid reading type")
	ErrInvalidReadingStatus  = errors.New("invalid reading status")
)

// ReadingJob is a persisted unit of work representing one requested
// reading. Answer is set iff the job completed; ErrorMessage is set iff
// it failed.
type ReadingJob struct {
	ID                    uuid.UUID      `json:"id"`
	UserID                uuid.UUID      `json:"user_id"`
	Question              string         `json:"question"`
	Type                  ReadingType    `json:"type"`
	Status                ReadingStatus  `json:"status"`
	Answer                *ReadingAnswer `json:"answer,omitempty"`
	ErrorMessage          string         `json:"error_message,omitempty"`
	ProcessingStartedAt   *time.Time     `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time     `json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// ReadingAnswer is the payload stored on a completed job.
type ReadingAnswer struct {
	Analysis QuestionAnalysis `json:"analysis"`
	Cards    []DrawnCard      `json:"cards"`
	Reading  ComposedReading  `json:"reading"`
}

// QuestionAnalysis is the structured interpretation of a question
// produced by the analysis model. All three fields are required.
type QuestionAnalysis struct {
	Mood   string `json:"mood"`
	Topic  string `json:"topic"`
	Period string `json:"period"`
}

// Validate checks that the analysis carries every required field.
func (a QuestionAnalysis) Validate() error {
	if a.Mood == "" || a.Topic == "" || a.Period == "" {
		return ErrIncompleteAnalysis
	}
	return nil
}

// ErrIncompleteAnalysis indicates the analysis model omitted a required field.
var ErrIncompleteAnalysis = errors.New("question analysis is missing required fields")

// CardInsight is the composed interpretation of one drawn card.
type CardInsight struct {
	CardID   int64  `json:"card_id"`
	CardName string `json:"card_name"`
	Insight  string `json:"insight"`
}

// ComposedReading is the final structured reading. Every named section
// must be present for the reading to be accepted.
type ComposedReading struct {
	Overview     string        `json:"overview"`
	CardInsights []CardInsight `json:"card_insights"`
	Guidance     string        `json:"guidance"`
	Outlook      string        `json:"outlook"`
}

// ErrIncompleteReading indicates a composed reading is missing one of its
// required sections.
var ErrIncompleteReading = errors.New("composed reading is missing required sections")

// Validate checks the composed reading for structural completeness.
func (r ComposedReading) Validate() error {
	if r.Overview == "" || r.Guidance == "" || r.Outlook == "" {
		return ErrIncompleteReading
	}
	if len(r.CardInsights) == 0 {
		return ErrIncompleteReading
	}
	for _, ci := range r.CardInsights {
		if ci.Insight == "" {
			return ErrIncompleteReading
		}
	}
	return nil
}

// NewReadingJob creates a pending reading job for the given user and
// question. Returns an error if validation fails.
func NewReadingJob(userID uuid.UUID, question string, readingType ReadingType) (*ReadingJob, error) {
	now := time.Now().UTC()
	job := &ReadingJob{
		ID:        uuid.New(),
		UserID:    userID,
		Question:  question,
		Type:      readingType,
		Status:    ReadingStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the ReadingJob has valid data.
func (j *ReadingJob) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyReadingID
	}
	if j.UserID == uuid.Nil {
		return ErrEmptyReadingUserID
	}
	if err := ValidateQuestion(j.Question); err != nil {
		return err
	}
	if !isValidReadingType(j.Type) {
		return ErrInvalidReadingType
	}
	if !isValidReadingStatus(j.Status) {
		return ErrInvalidReadingStatus
	}
	return nil
}

// ValidateQuestion checks the question length bounds.
func ValidateQuestion(question string) error {
	n := utf8.RuneCountInString(question)
	if n < MinQuestionLength || n > MaxQuestionLength {
		return ErrInvalidQuestionLength
	}
	return nil
}

// CanTransition reports whether moving from one status to another is a
// legal step of the job state machine.
func CanTransition(from, to ReadingStatus) bool {
	switch from {
	case ReadingStatusPending:
		return to == ReadingStatusProcessing
	case ReadingStatusProcessing:
		return to == ReadingStatusCompleted || to == ReadingStatusFailed
	default:
		// completed and failed are terminal
		return false
	}
}

func isValidReadingStatus(status ReadingStatus) bool {
	switch status {
	case ReadingStatusPending, ReadingStatusProcessing, ReadingStatusCompleted, ReadingStatusFailed:
		return true
	default:
		return false
	}
}

func isValidReadingType(t ReadingType) bool {
	switch t {
	case ReadingTypeGeneral, ReadingTypeLove, ReadingTypeCareer, ReadingTypeDestiny:
		return true
	default:
		return false
	}
}
