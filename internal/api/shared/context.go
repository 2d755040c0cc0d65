// Package shared holds helpers used by every API handler: context keys,
// request decoding and uniform JSON responses.
package shared

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a private type for request context values.
type contextKey string

// UserIDContextKey is the context key the auth middleware stores the
// authenticated user's ID under.
const UserIDContextKey contextKey = "user_id"

// UserIDFromContext extracts the authenticated user ID from the request
// context, reporting whether one was present.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDContextKey, id)
}
