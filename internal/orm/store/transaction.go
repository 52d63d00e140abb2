package store

import (
	"context"
	"database/sql"
	"fmt"
)

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// ReadCommitted prevents dirty reads (PostgreSQL default)
	ReadCommitted IsolationLevel = iota
	// Serializable makes concurrent transactions fail with a serialization error instead of interleaving
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	if l == Serializable {
		return "SERIALIZABLE"
	}
	return "READ COMMITTED"
}

// txOptions converts an isolation level to sql.TxOptions for the store's dialect.
// SQLite transactions are always serializable, so the driver's choice is left in place there.
func (s *Store) txOptions(level IsolationLevel) *sql.TxOptions {
	if level != Serializable || s.dialect.Name() == SQLite().Name() {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

// WithTransaction executes fn within a transaction.
// It commits when fn succeeds and rolls back when fn fails or panics.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.WithTransactionIsolation(ctx, ReadCommitted, fn)
}

// WithTransactionIsolation executes fn within a transaction with the given isolation level
func (s *Store) WithTransactionIsolation(ctx context.Context, level IsolationLevel, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, s.txOptions(level))
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", s.convert(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", s.convert(err))
	}
	return nil
}
