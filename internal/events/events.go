// Package events provides a minimal in-process event channel between the
// submission boundary and the batch worker. Submitting a reading emits a
// ReadingSubmitted event; the worker reacts by polling immediately
// instead of waiting out its interval. Delivery is best-effort: the
// interval poll picks up anything a lost event would have covered, and
// the job store's atomic claim keeps both paths safe.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeReadingSubmitted = "reading_submitted"
)

// Event is one notification.
type Event struct {
	ID        uuid.UUID
	Type      string
	UserID    uuid.UUID
	JobID     uuid.UUID
	CreatedAt time.Time
}

// NewReadingSubmitted creates the event emitted when a job is created.
func NewReadingSubmitted(userID, jobID uuid.UUID) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      TypeReadingSubmitted,
		UserID:    userID,
		JobID:     jobID,
		CreatedAt: time.Now().UTC(),
	}
}

// Handler processes events.
type Handler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// Emitter publishes events to registered handlers.
type Emitter interface {
	EmitEvent(ctx context.Context, event *Event) error
}
