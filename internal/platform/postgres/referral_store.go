package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/store"
)

// PostgresReferralStore implements the store.ReferralStore interface
// using PostgreSQL.
type PostgresReferralStore struct {
	db store.DBTX
}

// NewPostgresReferralStore creates a new PostgresReferralStore.
func NewPostgresReferralStore(db store.DBTX) *PostgresReferralStore {
	return &PostgresReferralStore{db: db}
}

// WithTx returns a new ReferralStore bound to the given transaction.
func (s *PostgresReferralStore) WithTx(tx *sql.Tx) store.ReferralStore {
	return &PostgresReferralStore{db: tx}
}

// GetLink retrieves the referral link row for a user.
func (s *PostgresReferralStore) GetLink(ctx context.Context, userID uuid.UUID) (*domain.ReferralLink, error) {
	query := `
		SELECT user_id, referred_by, used_at, created_at
		FROM referral_links
		WHERE user_id = $1
	`

	var link domain.ReferralLink
	var referredBy uuid.NullUUID
	var usedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&link.UserID,
		&referredBy,
		&usedAt,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReferralNotFound
		}
		return nil, fmt.Errorf("failed to get referral link: %w", MapError(err))
	}

	if referredBy.Valid {
		id := referredBy.UUID
		link.ReferredBy = &id
	}
	if usedAt.Valid {
		t := usedAt.Time
		link.UsedAt = &t
	}
	return &link, nil
}

// MarkUsed stamps the link's UsedAt after the referral reward is paid.
func (s *PostgresReferralStore) MarkUsed(ctx context.Context, userID uuid.UUID, usedAt time.Time) error {
	query := `
		UPDATE referral_links
		SET used_at = $1
		WHERE user_id = $2 AND used_at IS NULL
	`

	if _, err := s.db.ExecContext(ctx, query, usedAt, userID); err != nil {
		return fmt.Errorf("failed to mark referral link used: %w", MapError(err))
	}
	return nil
}
