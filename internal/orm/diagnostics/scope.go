// Package diagnostics reports non-fatal conditions found while materializing query results.
// Events are deduplicated per materialization scope, which spans one result set.
package diagnostics

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventStringEnumValueInJSON identifies the legacy enum diagnostic in structured logs
const EventStringEnumValueInJSON = "StringEnumValueInJson"

// StringEnumValueInJSONMessage is the log message emitted for an enum type whose values were read
// from their legacy string form
func StringEnumValueInJSONMessage(enumName string) string {
	return fmt.Sprintf(
		"Values of enum type '%s' were read from JSON as strings. Enum values should be stored as numbers; "+
			"save the affected entities to rewrite them in numeric form.",
		enumName,
	)
}

// Scope collects diagnostics for one materialization: a single query result set.
// Each enum type is reported at most once per scope, however many rows contain legacy values.
// A Scope is safe for concurrent use.
type Scope struct {
	id     uuid.UUID
	logger *zap.Logger

	mu        sync.Mutex
	seenEnums map[string]int
}

// NewScope creates a materialization scope logging to logger. A nil logger discards events.
func NewScope(logger *zap.Logger) *Scope {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scope{
		id:        uuid.New(),
		logger:    logger,
		seenEnums: make(map[string]int),
	}
}

// ID returns the scope identifier attached to every event it emits
func (s *Scope) ID() uuid.UUID {
	return s.id
}

// LegacyEnumValue records one legacy string enum value. The first occurrence per enum type is logged.
func (s *Scope) LegacyEnumValue(enumName string) {
	s.mu.Lock()
	s.seenEnums[enumName]++
	first := s.seenEnums[enumName] == 1
	s.mu.Unlock()

	if !first {
		return
	}

	s.logger.Warn(StringEnumValueInJSONMessage(enumName),
		zap.String("event", EventStringEnumValueInJSON),
		zap.String("enum", enumName),
		zap.String("scope", s.id.String()),
	)
}

// LegacyEnumCounts returns how many legacy values were seen per enum type in this scope
func (s *Scope) LegacyEnumCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]int, len(s.seenEnums))
	for k, v := range s.seenEnums {
		result[k] = v
	}
	return result
}

// Close logs a debug summary of the scope
func (s *Scope) Close() {
	counts := s.LegacyEnumCounts()
	if len(counts) == 0 {
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	s.logger.Debug("materialization scope closed",
		zap.String("scope", s.id.String()),
		zap.Int("legacy_enum_values", total),
		zap.Int("legacy_enum_types", len(counts)),
	)
}
