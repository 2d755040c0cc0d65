package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veilmoth/arcana-api/internal/store"
)

func newMockCardStore(t *testing.T) (*PostgresCardStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresCardStore(db), mock
}

func TestCardStore_GetByIDs(t *testing.T) {
	s, mock := newMockCardStore(t)

	mock.ExpectQuery("SELECT (.+) FROM cards").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "arcana", "image_ref", "meaning", "keywords"}).
			AddRow(1, "The Fool", "major", "cards/00_fool.png", "New beginnings.", []byte(`["beginnings"]`)).
			AddRow(17, "The Star", "major", "cards/17_star.png", "Hope and renewal.", []byte(`["hope"]`)))

	cards, err := s.GetByIDs(context.Background(), []int64{1, 17})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "The Fool", cards[0].Name)
	assert.Equal(t, []string{"hope"}, cards[1].Keywords)
}

func TestCardStore_GetByIDs_MissingCard(t *testing.T) {
	s, mock := newMockCardStore(t)

	mock.ExpectQuery("SELECT (.+) FROM cards").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "arcana", "image_ref", "meaning", "keywords"}).
			AddRow(1, "The Fool", "major", "", "New beginnings.", []byte(`[]`)))

	_, err := s.GetByIDs(context.Background(), []int64{1, 99})
	assert.ErrorIs(t, err, store.ErrCardNotFound)
}

func TestCardStore_GetByIDs_Empty(t *testing.T) {
	s, _ := newMockCardStore(t)

	cards, err := s.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, cards)
}

func TestCardStore_ListIDs(t *testing.T) {
	s, mock := newMockCardStore(t)

	mock.ExpectQuery("SELECT id FROM cards").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	ids, err := s.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}
