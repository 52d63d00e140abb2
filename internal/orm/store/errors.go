package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a row is not found
	ErrNotFound = errors.New("row not found")

	// ErrUnknownEntity is returned for entity names missing from the model
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUnknownColumn is returned for JSON column or property names missing from the model
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRequiredColumn is returned when a required owned reference is nil on write
	ErrRequiredColumn = errors.New("required column is null")
)

// SQLStateInvalidTextRepresentation is the SQLSTATE PostgreSQL raises when a text value
// cannot be cast, for example a legacy string enum cast to integer
const SQLStateInvalidTextRepresentation = "22P02"

// StorageDriverError carries a database driver failure. The driver error stays reachable
// through errors.As, so callers can match on *pgconn.PgError, *pq.Error or sqlite3.Error.
type StorageDriverError struct {
	Dialect string
	// Code is the SQLSTATE for PostgreSQL drivers and the extended result code for SQLite
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *StorageDriverError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Dialect, e.Message)
	}
	return fmt.Sprintf("%s error %s: %s", e.Dialect, e.Code, e.Message)
}

// Unwrap returns the driver error
func (e *StorageDriverError) Unwrap() error {
	return e.Err
}

// ConvertDBError classifies a driver error. sql.ErrNoRows becomes ErrNotFound and known driver
// errors are wrapped in a StorageDriverError; anything else is returned unchanged.
func ConvertDBError(dialect string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var driverErr *StorageDriverError
	if errors.As(err, &driverErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &StorageDriverError{Dialect: dialect, Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &StorageDriverError{Dialect: dialect, Code: string(pqErr.Code), Message: pqErr.Message, Err: err}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return &StorageDriverError{
			Dialect: dialect,
			Code:    strconv.Itoa(int(sqliteErr.ExtendedCode)),
			Message: sqliteErr.Error(),
			Err:     err,
		}
	}

	return err
}

// SQLState returns the driver error code carried by err, if any
func SQLState(err error) (string, bool) {
	var driverErr *StorageDriverError
	if errors.As(err, &driverErr) && driverErr.Code != "" {
		return driverErr.Code, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}

// IsInvalidTextRepresentation returns true if err is a PostgreSQL 22P02 failure
func IsInvalidTextRepresentation(err error) bool {
	code, ok := SQLState(err)
	return ok && code == SQLStateInvalidTextRepresentation
}
