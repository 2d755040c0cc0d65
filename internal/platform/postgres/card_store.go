package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/store"
)

// PostgresCardStore implements the store.CardStore interface using
// PostgreSQL. The catalog is read-only at runtime; it is seeded by
// migration.
type PostgresCardStore struct {
	db store.DBTX
}

// NewPostgresCardStore creates a new PostgresCardStore.
func NewPostgresCardStore(db store.DBTX) *PostgresCardStore {
	return &PostgresCardStore{db: db}
}

// ListIDs returns the IDs of every card in the catalog.
func (s *PostgresCardStore) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list card IDs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card ID rows: %w", err)
	}
	return ids, nil
}

// GetByIDs retrieves display records for the given card IDs.
func (s *PostgresCardStore) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := psql.Select("id", "name", "arcana", "image_ref", "meaning", "keywords").
		From("cards").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build card query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var cards []*domain.Card
	for rows.Next() {
		var card domain.Card
		var keywords []byte
		if err := rows.Scan(&card.ID, &card.Name, &card.Arcana, &card.ImageRef, &card.Meaning, &keywords); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		if len(keywords) > 0 {
			if err := json.Unmarshal(keywords, &card.Keywords); err != nil {
				return nil, fmt.Errorf("failed to unmarshal card keywords: %w", err)
			}
		}
		cards = append(cards, &card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card rows: %w", err)
	}

	if len(cards) != len(ids) {
		return nil, fmt.Errorf("%w: requested %d cards, found %d", store.ErrCardNotFound, len(ids), len(cards))
	}
	return cards, nil
}
