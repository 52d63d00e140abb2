package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the default number of attempts for transactions that hit a conflict
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrRetriesExhausted is returned when every attempt of a retried transaction hit a conflict
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// RetryConfig configures retry behavior for transactions
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
	Isolation   IsolationLevel
}

// DefaultRetryConfig returns the default retry configuration.
// Retried transactions run serializable so that conflicting writers surface as retryable errors.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
		Isolation:   Serializable,
	}
}

// WithRetry executes fn in a serializable transaction, retrying on deadlocks, serialization failures
// and busy SQLite databases
func (s *Store) WithRetry(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.WithRetryConfig(ctx, DefaultRetryConfig(), fn)
}

// WithRetryConfig executes fn in a transaction with a custom retry configuration.
// Backoff doubles after every failed attempt.
func (s *Store) WithRetryConfig(ctx context.Context, config *RetryConfig, fn func(tx *sql.Tx) error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("transaction cancelled before retry %d: %w", attempt, ctx.Err())
		}

		err := s.WithTransactionIsolation(ctx, config.Isolation, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		backoff := config.BaseBackoff * time.Duration(1<<uint(attempt))
		s.logger.Warn("retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Stringer("isolation", config.Isolation),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, config.MaxRetries, lastErr)
}

// Codes worth another attempt: PostgreSQL SQLSTATEs and SQLite extended result codes
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"5":     true, // SQLITE_BUSY
	"261":   true, // SQLITE_BUSY_RECOVERY
	"517":   true, // SQLITE_BUSY_SNAPSHOT
	"6":     true, // SQLITE_LOCKED
}

// IsRetryable returns true if err is a conflict that may succeed when the transaction is run again
func IsRetryable(err error) bool {
	code, ok := SQLState(err)
	return ok && retryableCodes[code]
}
