package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/codec"
	"github.com/conduit-lang/docmap/internal/orm/diagnostics"
	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/mapping"
)

// Rewrite is a stored JSON column whose canonical encoding differs from what is stored
type Rewrite struct {
	Key       interface{}
	Column    string
	Stored    []byte
	Canonical []byte
}

// Normalize finds the JSON columns of an entity whose stored documents are not in canonical form,
// such as enums stored as member names. With apply set the documents are read and rewritten in one
// serializable transaction, retried when a concurrent writer conflicts with it. Documents that differ
// only in whitespace or member order are left alone.
func (s *Store) Normalize(ctx context.Context, entityName string, apply bool) ([]Rewrite, error) {
	e, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}

	if !apply {
		return s.findRewrites(ctx, s.db, e)
	}

	var rewrites []Rewrite
	err = s.WithRetry(ctx, func(tx *sql.Tx) error {
		found, err := s.findRewrites(ctx, tx, e)
		if err != nil {
			return err
		}
		for _, rw := range found {
			c, _ := e.Column(rw.Column)
			query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
				QuoteIdentifier(e.Table), QuoteIdentifier(c.Column), s.dialect.Placeholder(1),
				QuoteIdentifier(e.Key), s.dialect.Placeholder(2))
			if _, err := tx.ExecContext(ctx, query, string(rw.Canonical), rw.Key); err != nil {
				return fmt.Errorf("failed to normalize %s.%s for key %v: %w", e.Name, rw.Column, rw.Key, s.convert(err))
			}
		}
		rewrites = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(rewrites) > 0 {
		s.logger.Info("normalized documents", zap.String("entity", e.Name), zap.Int("rewrites", len(rewrites)))
	}
	return rewrites, nil
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) findRewrites(ctx context.Context, q querier, e *mapping.Entity) ([]Rewrite, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		s.selectList(e), QuoteIdentifier(e.Table), QuoteIdentifier(e.Key))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", e.Name, s.convert(err))
	}
	defer rows.Close()

	scope := diagnostics.NewScope(s.logger.With(zap.String("entity", e.Name)))
	defer scope.Close()
	dec := codec.NewDecoder(scope)

	var rewrites []Rewrite
	for rows.Next() {
		var key interface{}
		raws := make([][]byte, len(e.Columns))
		dest := []interface{}{&key}
		for i := range raws {
			dest = append(dest, &raws[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", e.Name, s.convert(err))
		}
		key = normalizeKey(key)

		for i, c := range e.Columns {
			if raws[i] == nil {
				continue
			}
			value, err := decodeColumn(dec, c, raws[i])
			if err != nil {
				return nil, fmt.Errorf("failed to materialize %s.%s for key %v: %w", e.Name, c.Name, key, err)
			}
			canonical, err := canonicalDocument(c, value)
			if err != nil {
				return nil, fmt.Errorf("%s.%s for key %v: %w", e.Name, c.Name, key, err)
			}
			if jsonpatch.Equal(raws[i], canonical) {
				continue
			}
			rewrites = append(rewrites, Rewrite{
				Key:       key,
				Column:    c.Name,
				Stored:    compact(raws[i]),
				Canonical: canonical,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", e.Name, s.convert(err))
	}
	return rewrites, nil
}

func canonicalDocument(c *mapping.Column, value interface{}) ([]byte, error) {
	if c.Collection() {
		items, _ := value.([]graph.Graph)
		return codec.EncodeCollection(items, c.Schema)
	}
	g, _ := value.(graph.Graph)
	return codec.Encode(g, c.Schema)
}

// compact returns a stored document without insignificant whitespace, for display next to the canonical form
func compact(doc []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return append([]byte(nil), doc...)
	}
	return buf.Bytes()
}
