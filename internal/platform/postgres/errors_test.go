package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/veilmoth/arcana-api/internal/store"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	assert.ErrorIs(t, MapError(sql.ErrNoRows), store.ErrNotFound)

	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: uniqueViolationCode}), store.ErrDuplicate)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: foreignKeyViolationCode}), store.ErrInvalidEntity)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: checkViolationCode}), store.ErrInvalidEntity)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: notNullViolationCode}), store.ErrInvalidEntity)

	// Unknown errors pass through unchanged.
	unknown := errors.New("connection reset")
	assert.Equal(t, unknown, MapError(unknown))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}
