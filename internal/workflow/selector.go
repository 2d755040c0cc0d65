package workflow

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/veilmoth/arcana-api/internal/domain"
	"github.com/veilmoth/arcana-api/internal/store"
)

// CardSelector draws a unique random spread from the card catalog.
type CardSelector struct {
	catalog store.CardStore
}

// NewCardSelector creates a CardSelector over the given catalog.
func NewCardSelector(catalog store.CardStore) *CardSelector {
	return &CardSelector{catalog: catalog}
}

// Draw selects between MinSpreadSize and MaxSpreadSize distinct cards by
// rejection sampling over the catalog's ID set. When the catalog is
// smaller than the spread, the whole catalog is drawn.
func (s *CardSelector) Draw(ctx context.Context) ([]domain.DrawnCard, error) {
	ids, err := s.catalog.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load card catalog: %w", err)
	}
	// A zero-card spread cannot produce a valid reading: the composed
	// answer requires at least one card insight. An empty catalog means
	// the seed migration never ran, so fail the draw rather than emit an
	// answer that cannot validate.
	if len(ids) == 0 {
		return nil, fmt.Errorf("card catalog is empty")
	}

	n := domain.MinSpreadSize + rand.IntN(domain.MaxSpreadSize-domain.MinSpreadSize+1)
	if n > len(ids) {
		n = len(ids)
	}

	chosen := make(map[int64]struct{}, n)
	selected := make([]int64, 0, n)
	for len(selected) < n {
		id := ids[rand.IntN(len(ids))]
		if _, dup := chosen[id]; dup {
			continue
		}
		chosen[id] = struct{}{}
		selected = append(selected, id)
	}

	cards, err := s.catalog.GetByIDs(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("failed to look up drawn cards: %w", err)
	}

	byID := make(map[int64]*domain.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	drawn := make([]domain.DrawnCard, 0, n)
	for i, id := range selected {
		card := byID[id]
		drawn = append(drawn, domain.DrawnCard{
			CardID:   card.ID,
			Name:     card.Name,
			Position: i + 1,
			Reversed: rand.IntN(2) == 1,
			Meaning:  card.Meaning,
			Keywords: card.Keywords,
		})
	}
	return drawn, nil
}
