// Package store persists entities whose owned documents live in JSON columns.
// Rows are materialized through the document codec with one diagnostics scope per result set,
// and saved by rewriting only the JSON columns whose graphs changed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/codec"
	"github.com/conduit-lang/docmap/internal/orm/diagnostics"
	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/mapping"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Store reads and writes the entities of a finalized model
type Store struct {
	db      *sql.DB
	dialect Dialect
	model   *mapping.Model
	logger  *zap.Logger
}

// New creates a store. A nil logger discards diagnostics.
func New(db *sql.DB, dialect Dialect, model *mapping.Model, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: dialect, model: model, logger: logger}
}

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Model returns the mapped model
func (s *Store) Model() *mapping.Model {
	return s.model
}

func (s *Store) convert(err error) error {
	return ConvertDBError(s.dialect.Name(), err)
}

func (s *Store) entity(name string) (*mapping.Entity, error) {
	e, ok := s.model.Entity(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e, nil
}

// NewRow creates an unsaved row with NULL references and empty collections
func (s *Store) NewRow(entityName string, key interface{}) (*Row, error) {
	e, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}
	return newRow(e, key, nil)
}

func (s *Store) selectList(e *mapping.Entity) string {
	columns := make([]string, 0, len(e.Columns)+1)
	columns = append(columns, QuoteIdentifier(e.Key))
	for _, c := range e.Columns {
		columns = append(columns, QuoteIdentifier(c.Column))
	}
	return strings.Join(columns, ", ")
}

// Find loads the row with the given key
func (s *Store) Find(ctx context.Context, entityName string, key interface{}) (*Row, error) {
	e, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.selectList(e), QuoteIdentifier(e.Table), QuoteIdentifier(e.Key), s.dialect.Placeholder(1))

	rows, err := s.materialize(ctx, e, query, key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to find %s %v: %w", e.Name, key, ErrNotFound)
	}
	return rows[0], nil
}

// FindAll loads every row of the entity ordered by key
func (s *Store) FindAll(ctx context.Context, entityName string) ([]*Row, error) {
	e, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		s.selectList(e), QuoteIdentifier(e.Table), QuoteIdentifier(e.Key))
	return s.materialize(ctx, e, query)
}

// materialize runs a query and decodes every JSON column of every row.
// The whole result set shares one diagnostics scope, so each legacy enum type is reported once.
func (s *Store) materialize(ctx context.Context, e *mapping.Entity, query string, args ...interface{}) ([]*Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", e.Name, s.convert(err))
	}
	defer rows.Close()

	scope := diagnostics.NewScope(s.logger.With(zap.String("entity", e.Name)))
	defer scope.Close()
	dec := codec.NewDecoder(scope)

	var result []*Row
	for rows.Next() {
		var key interface{}
		raws := make([][]byte, len(e.Columns))
		dest := make([]interface{}, 0, len(e.Columns)+1)
		dest = append(dest, &key)
		for i := range raws {
			dest = append(dest, &raws[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", e.Name, s.convert(err))
		}
		key = normalizeKey(key)

		loaded := make(map[string]interface{}, len(e.Columns))
		for i, c := range e.Columns {
			value, err := decodeColumn(dec, c, raws[i])
			if err != nil {
				return nil, fmt.Errorf("failed to materialize %s.%s for key %v: %w", e.Name, c.Name, key, err)
			}
			loaded[c.Name] = value
		}

		row, err := newRow(e, key, loaded)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", e.Name, s.convert(err))
	}
	return result, nil
}

func decodeColumn(dec *codec.Decoder, c *mapping.Column, raw []byte) (interface{}, error) {
	if raw == nil {
		if c.Collection() {
			return []graph.Graph{}, nil
		}
		return graph.Graph(nil), nil
	}
	if c.Collection() {
		return dec.DecodeCollection(raw, c.Schema)
	}
	return dec.Decode(raw, c.Schema)
}

func normalizeKey(key interface{}) interface{} {
	if b, ok := key.([]byte); ok {
		return string(b)
	}
	return key
}

// encodeColumn returns the SQL argument for a column value: the JSON text, or nil for SQL NULL
func encodeColumn(e *mapping.Entity, c *mapping.Column, value interface{}) (interface{}, error) {
	if c.Collection() {
		items, _ := value.([]graph.Graph)
		doc, err := codec.EncodeCollection(items, c.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s: %w", e.Name, c.Name, err)
		}
		return string(doc), nil
	}

	g, _ := value.(graph.Graph)
	if g == nil {
		if c.Required {
			return nil, fmt.Errorf("%w: %s.%s", ErrRequiredColumn, e.Name, c.Name)
		}
		return nil, nil
	}
	doc, err := codec.Encode(g, c.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s.%s: %w", e.Name, c.Name, err)
	}
	return string(doc), nil
}

// Insert writes new rows in one transaction and marks them unchanged
func (s *Store) Insert(ctx context.Context, rows ...*Row) error {
	if len(rows) == 0 {
		return nil
	}

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			e := r.entity
			columns := []string{QuoteIdentifier(e.Key)}
			placeholders := []string{s.dialect.Placeholder(1)}
			args := []interface{}{r.key}
			for _, c := range e.Columns {
				arg, err := encodeColumn(e, c, r.tracker.Current(c.Name))
				if err != nil {
					return err
				}
				columns = append(columns, QuoteIdentifier(c.Column))
				placeholders = append(placeholders, s.dialect.Placeholder(len(args)+1))
				args = append(args, arg)
			}

			query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				QuoteIdentifier(e.Table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert %s %v: %w", e.Name, r.key, s.convert(err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range rows {
		r.tracker.Reset()
	}
	return nil
}

type rowUpdate struct {
	row   *Row
	query string
	args  []interface{}
}

// SaveChanges writes the changed JSON columns of the given rows in one transaction and returns
// how many rows were updated. Each changed column is rewritten whole, in canonical form;
// rows without changes issue no statement.
func (s *Store) SaveChanges(ctx context.Context, rows ...*Row) (int, error) {
	var updates []rowUpdate
	for _, r := range rows {
		u, ok, err := s.buildUpdate(r)
		if err != nil {
			return 0, err
		}
		if ok {
			updates = append(updates, u)
		}
	}
	if len(updates) == 0 {
		return 0, nil
	}

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			result, err := tx.ExecContext(ctx, u.query, u.args...)
			if err != nil {
				return fmt.Errorf("failed to update %s %v: %w", u.row.entity.Name, u.row.key, s.convert(err))
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("failed to update %s %v: %w", u.row.entity.Name, u.row.key, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, u := range updates {
		u.row.tracker.Reset()
	}
	return len(updates), nil
}

func (s *Store) buildUpdate(r *Row) (rowUpdate, bool, error) {
	e := r.entity
	changes, err := r.tracker.Changes()
	if err != nil {
		return rowUpdate{}, false, fmt.Errorf("%s %v: %w", e.Name, r.key, err)
	}
	if len(changes) == 0 {
		return rowUpdate{}, false, nil
	}

	var (
		assignments []string
		args        []interface{}
		names       []string
	)
	for _, c := range e.Columns {
		change, ok := changes[c.Name]
		if !ok {
			continue
		}
		arg, err := encodeColumn(e, c, change.NewValue)
		if err != nil {
			return rowUpdate{}, false, err
		}
		args = append(args, arg)
		assignments = append(assignments, fmt.Sprintf("%s = %s", QuoteIdentifier(c.Column), s.dialect.Placeholder(len(args))))
		names = append(names, c.Name)

		if ce := s.logger.Check(zap.DebugLevel, "column changed"); ce != nil {
			patch, err := change.Projection.MergePatch()
			if err != nil {
				return rowUpdate{}, false, fmt.Errorf("%s.%s: %w", e.Name, c.Name, err)
			}
			ce.Write(
				zap.String("entity", e.Name),
				zap.Any("key", r.key),
				zap.String("column", c.Name),
				zap.String("path", change.Projection.Path),
				zap.ByteString("merge_patch", patch),
			)
		}
	}
	args = append(args, r.key)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		QuoteIdentifier(e.Table), strings.Join(assignments, ", "), QuoteIdentifier(e.Key), s.dialect.Placeholder(len(args)))

	s.logger.Debug("saving row", zap.String("entity", e.Name), zap.Any("key", r.key), zap.Strings("columns", names))
	return rowUpdate{row: r, query: query, args: args}, true, nil
}

// Delete removes the row with the given key
func (s *Store) Delete(ctx context.Context, entityName string, key interface{}) error {
	e, err := s.entity(entityName)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		QuoteIdentifier(e.Table), QuoteIdentifier(e.Key), s.dialect.Placeholder(1))
	result, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s %v: %w", e.Name, key, s.convert(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to delete %s %v: %w", e.Name, key, ErrNotFound)
	}
	return nil
}

// ScalarValue is one row of a JSON scalar projection
type ScalarValue struct {
	Key   interface{}
	Value interface{}
}

// SelectJSONScalar projects a scalar property out of a JSON column of every row, cast in SQL to the
// property's type. path names properties, following owned references from the column's root.
// Database failures are returned as StorageDriverError wrapping the driver error; PostgreSQL
// fails with 22P02 when a legacy string enum value meets a numeric cast.
func (s *Store) SelectJSONScalar(ctx context.Context, entityName, column string, path ...string) ([]ScalarValue, error) {
	e, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}
	c, ok := e.Column(column)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, e.Name, column)
	}
	if c.Collection() {
		return nil, fmt.Errorf("%s.%s: scalar projection needs an owned reference column", e.Name, column)
	}

	members, leaf, err := resolvePath(c.Schema, path)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", e.Name, column, err)
	}
	expr, err := s.dialect.JSONScalar(c.Column, members, leaf)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", e.Name, column, err)
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
		QuoteIdentifier(e.Key), expr, QuoteIdentifier(e.Table), QuoteIdentifier(e.Key))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s.%s: %w", e.Name, strings.Join(path, "."), s.convert(err))
	}
	defer rows.Close()

	var result []ScalarValue
	for rows.Next() {
		var v ScalarValue
		if err := rows.Scan(&v.Key, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", e.Name, s.convert(err))
		}
		v.Key = normalizeKey(v.Key)
		if b, ok := v.Value.([]byte); ok {
			v.Value = string(b)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to select %s.%s: %w", e.Name, strings.Join(path, "."), s.convert(err))
	}
	return result, nil
}

// resolvePath maps property names to JSON member names. Every step but the last must be an
// owned reference and the last must be a scalar.
func resolvePath(s *schema.DocumentSchema, path []string) ([]string, *schema.PropertyNode, error) {
	if len(path) == 0 {
		return nil, nil, errors.New("empty property path")
	}

	members := make([]string, 0, len(path))
	current := s
	for i, name := range path {
		p, ok := current.Property(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s has no property %s", ErrUnknownColumn, current.Name, name)
		}
		members = append(members, p.JSONName)

		if i == len(path)-1 {
			if p.Kind != schema.KindScalar {
				return nil, nil, fmt.Errorf("property %s is a %s, not a scalar", name, p.Kind)
			}
			return members, p, nil
		}
		if p.Kind != schema.KindReference {
			return nil, nil, fmt.Errorf("property %s is a %s; only owned references can be traversed", name, p.Kind)
		}
		current = p.Child
	}
	return nil, nil, errors.New("unreachable")
}
