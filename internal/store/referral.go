package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
)

// ReferralStore defines the interface for referral link persistence.
type ReferralStore interface {
	// GetLink retrieves the referral link row for a user.
	// Returns ErrReferralNotFound if the user has no row.
	GetLink(ctx context.Context, userID uuid.UUID) (*domain.ReferralLink, error)

	// MarkUsed stamps the link's UsedAt once the referral reward is paid.
	MarkUsed(ctx context.Context, userID uuid.UUID, usedAt time.Time) error

	// WithTx returns a new ReferralStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ReferralStore
}

// CardStore defines read access to the card catalog.
type CardStore interface {
	// ListIDs returns the IDs of every card in the catalog.
	ListIDs(ctx context.Context) ([]int64, error)

	// GetByIDs retrieves display records for the given card IDs.
	// Returns ErrCardNotFound if any ID is unknown.
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Card, error)
}
