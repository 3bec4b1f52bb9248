package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pzielinski/tourney-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	t.Run("nil error", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, MapError(nil))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		t.Parallel()
		err := MapError(fmt.Errorf("query failed: %w", sql.ErrNoRows))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		t.Parallel()
		pgErr := &pgconn.PgError{Code: uniqueViolationCode}
		err := MapError(fmt.Errorf("insert failed: %w", pgErr))
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		t.Parallel()
		orig := errors.New("connection refused")
		assert.Equal(t, orig, MapError(orig))
	})
}

func TestOwnerParam(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	assert.Equal(t, uuid.NullUUID{UUID: owner, Valid: true}, ownerParam(owner))
	assert.Equal(t, uuid.NullUUID{Valid: false}, ownerParam(uuid.Nil))
}
