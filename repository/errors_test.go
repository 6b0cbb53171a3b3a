package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "documents_and_images_raw_input_key"}
	err := mapError(fmt.Errorf("insert: %w", dup))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "documents_and_images_raw_input_key")

	other := &pgconn.PgError{Code: "23502"}
	assert.Same(t, other, mapError(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}

func TestJSONArg(t *testing.T) {
	assert.Nil(t, jsonArg(nil))
	assert.Equal(t, `{"a":1}`, jsonArg([]byte(`{"a":1}`)))
}
