package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReadingJob(t *testing.T) {
	userID := uuid.New()

	job, err := NewReadingJob(userID, "What should I focus on this month?", ReadingTypeGeneral)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, ReadingStatusPending, job.Status)
	assert.Nil(t, job.Answer)
	assert.Empty(t, job.ErrorMessage)
	assert.Equal(t, job.CreatedAt, job.UpdatedAt)
}

func TestNewReadingJob_Validation(t *testing.T) {
	tests := []struct {
		name        string
		userID      uuid.UUID
		question    string
		readingType ReadingType
		wantErr     error
	}{
		{
			name:        "empty user ID",
			userID:      uuid.Nil,
			question:    "What should I focus on this month?",
			readingType: ReadingTypeGeneral,
			wantErr:     ErrEmptyReadingUserID,
		},
		{
			name:        "question too short",
			userID:      uuid.New(),
			question:    "Why me?",
			readingType: ReadingTypeGeneral,
			wantErr:     ErrInvalidQuestionLength,
		},
		{
			name:        "question too long",
			userID:      uuid.New(),
			question:    strings.Repeat("a", MaxQuestionLength+1),
			readingType: ReadingTypeGeneral,
			wantErr:     ErrInvalidQuestionLength,
		},
		{
			name:        "unknown reading type",
			userID:      uuid.New(),
			question:    "What should I focus on this month?",
			readingType: ReadingType("weather"),
			wantErr:     ErrInvalidReadingType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewReadingJob(tt.userID, tt.question, tt.readingType)
			assert.Nil(t, job)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateQuestion_Bounds(t *testing.T) {
	// Bounds are counted in runes, not bytes.
	assert.NoError(t, ValidateQuestion(strings.Repeat("a", MinQuestionLength)))
	assert.NoError(t, ValidateQuestion(strings.Repeat("a", MaxQuestionLength)))
	assert.NoError(t, ValidateQuestion(strings.Repeat("っ", MinQuestionLength)))

	assert.ErrorIs(t, ValidateQuestion(strings.Repeat("a", MinQuestionLength-1)), ErrInvalidQuestionLength)
	assert.ErrorIs(t, ValidateQuestion(strings.Repeat("a", MaxQuestionLength+1)), ErrInvalidQuestionLength)
	assert.ErrorIs(t, ValidateQuestion(""), ErrInvalidQuestionLength)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from ReadingStatus
		to   ReadingStatus
		want bool
	}{
		{ReadingStatusPending, ReadingStatusProcessing, true},
		{ReadingStatusProcessing, ReadingStatusCompleted, true},
		{ReadingStatusProcessing, ReadingStatusFailed, true},

		{ReadingStatusPending, ReadingStatusCompleted, false},
		{ReadingStatusPending, ReadingStatusFailed, false},
		{ReadingStatusProcessing, ReadingStatusPending, false},
		{ReadingStatusCompleted, ReadingStatusProcessing, false},
		{ReadingStatusCompleted, ReadingStatusFailed, false},
		{ReadingStatusFailed, ReadingStatusProcessing, false},
		{ReadingStatusFailed, ReadingStatusCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"transition %s -> %s", tt.from, tt.to)
	}
}

func TestQuestionAnalysis_Validate(t *testing.T) {
	valid := QuestionAnalysis{Mood: "hopeful", Topic: "career", Period: "near future"}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, QuestionAnalysis{Topic: "career", Period: "now"}.Validate(), ErrIncompleteAnalysis)
	assert.ErrorIs(t, QuestionAnalysis{Mood: "hopeful", Period: "now"}.Validate(), ErrIncompleteAnalysis)
	assert.ErrorIs(t, QuestionAnalysis{Mood: "hopeful", Topic: "career"}.Validate(), ErrIncompleteAnalysis)
}

func TestComposedReading_Validate(t *testing.T) {
	complete := ComposedReading{
		Overview: "An overview.",
		CardInsights: []CardInsight{
			{CardID: 1, CardName: "The Fool", Insight: "A beginning."},
		},
		Guidance: "Some guidance.",
		Outlook:  "A bright outlook.",
	}
	assert.NoError(t, complete.Validate())

	missingSection := complete
	missingSection.Guidance = ""
	assert.ErrorIs(t, missingSection.Validate(), ErrIncompleteReading)

	noInsights := complete
	noInsights.CardInsights = nil
	assert.ErrorIs(t, noInsights.Validate(), ErrIncompleteReading)

	emptyInsight := complete
	emptyInsight.CardInsights = []CardInsight{{CardID: 1, CardName: "The Fool"}}
	assert.ErrorIs(t, emptyInsight.Validate(), ErrIncompleteReading)
}
