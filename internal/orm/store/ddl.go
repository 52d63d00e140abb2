package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/mapping"
)

// CreateTableSQL generates the CREATE TABLE statement of an entity.
// Required owned references are NOT NULL; a NULL collection column loads as an empty collection.
func (s *Store) CreateTableSQL(e *mapping.Entity) (string, error) {
	keyType, err := s.dialect.KeyColumnType(e.KeyType)
	if err != nil {
		return "", fmt.Errorf("entity %s: %w", e.Name, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdentifier(e.Table)))
	sb.WriteString(fmt.Sprintf("  %s %s PRIMARY KEY", QuoteIdentifier(e.Key), keyType))
	for _, c := range e.Columns {
		sb.WriteString(",\n")
		sb.WriteString(fmt.Sprintf("  %s %s", QuoteIdentifier(c.Column), s.dialect.JSONColumnType()))
		if c.Required {
			sb.WriteString(" NOT NULL")
		}
	}
	sb.WriteString("\n);")
	return sb.String(), nil
}

// CreateSchemaSQL returns the statements creating the model: extensions first, then one table per entity
func (s *Store) CreateSchemaSQL() ([]string, error) {
	var statements []string
	for _, ext := range s.model.Extensions() {
		if stmt, ok := s.dialect.CreateExtension(ext); ok {
			statements = append(statements, stmt+";")
		}
	}
	for _, e := range s.model.Entities() {
		stmt, err := s.CreateTableSQL(e)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// EnsureSchema creates any missing extension and table in one transaction
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements, err := s.CreateSchemaSQL()
	if err != nil {
		return err
	}
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create schema: %w", s.convert(err))
			}
		}
		s.logger.Info("schema ensured", zap.Int("statements", len(statements)))
		return nil
	})
}
