package store

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertDBError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantIs   error
	}{
		{name: "nil", err: nil},
		{name: "no rows", err: sql.ErrNoRows, wantIs: ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), wantIs: ErrNotFound},
		{
			name:     "pgx",
			err:      &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type integer"},
			wantCode: "22P02",
		},
		{
			name:     "lib/pq",
			err:      &pq.Error{Code: "22P02", Message: "invalid input syntax for type integer"},
			wantCode: "22P02",
		},
		{
			name:     "sqlite",
			err:      sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey},
			wantCode: "1555",
		},
		{name: "unclassified", err: other, wantIs: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertDBError("postgres", tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			if tt.wantIs != nil {
				assert.ErrorIs(t, got, tt.wantIs)
			}
			if tt.wantCode != "" {
				var driverErr *StorageDriverError
				require.True(t, errors.As(got, &driverErr))
				assert.Equal(t, tt.wantCode, driverErr.Code)
				assert.ErrorIs(t, got, tt.err)
			}
		})
	}
}

func TestConvertDBError_DoesNotWrapTwice(t *testing.T) {
	first := ConvertDBError("postgres", &pgconn.PgError{Code: "23505"})
	second := ConvertDBError("postgres", fmt.Errorf("insert: %w", first))

	var driverErr *StorageDriverError
	require.True(t, errors.As(second, &driverErr))
	assert.IsType(t, &pgconn.PgError{}, driverErr.Err)
}

func TestSQLState(t *testing.T) {
	code, ok := SQLState(fmt.Errorf("query: %w", &pq.Error{Code: "22P02"}))
	assert.True(t, ok)
	assert.Equal(t, "22P02", code)

	_, ok = SQLState(errors.New("plain"))
	assert.False(t, ok)

	assert.True(t, IsInvalidTextRepresentation(&pgconn.PgError{Code: "22P02"}))
	assert.False(t, IsInvalidTextRepresentation(&pgconn.PgError{Code: "23505"}))
}

func TestStorageDriverError_Error(t *testing.T) {
	err := &StorageDriverError{Dialect: "postgres", Code: "22P02", Message: "bad input"}
	assert.Equal(t, "postgres error 22P02: bad input", err.Error())

	err = &StorageDriverError{Dialect: "sqlite", Message: "disk I/O error"}
	assert.Equal(t, "sqlite: disk I/O error", err.Error())
}
