// Package tracking decides what a JSON column must persist after its owned graph was modified.
// Owned graphs have no independently addressable rows, so the unit of change is the whole column.
package tracking

import (
	"bytes"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/conduit-lang/docmap/internal/orm/codec"
	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Projection is the result of diffing two states of one JSON column
type Projection struct {
	// Changed is false when no scalar, reference or collection subtree differs
	Changed bool
	// Document is the full re-encoded column value; nil when unchanged
	Document []byte
	// Path is the JSON path of the first difference found
	Path string

	previous []byte
}

// Unchanged reports whether nothing needs to be written
func (p *Projection) Unchanged() bool {
	return p == nil || !p.Changed
}

// Previous returns the encoding of the previous state, or nil when unchanged
func (p *Projection) Previous() []byte {
	if p == nil {
		return nil
	}
	return p.previous
}

// MergePatch returns an RFC 7386 merge patch turning the previous document into Document.
// It is informational only; the column is always rewritten in full.
// A root that is not an object on both sides yields the new document itself, which replaces the target.
func (p *Projection) MergePatch() ([]byte, error) {
	if p.Unchanged() {
		return []byte("{}"), nil
	}
	if !isObject(p.previous) || !isObject(p.Document) {
		return append([]byte(nil), p.Document...), nil
	}
	patch, err := jsonpatch.CreateMergePatch(p.previous, p.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch at %s: %w", p.Path, err)
	}
	return patch, nil
}

// Diff compares two states of an owned reference column.
// Absent properties compare equal to their defaults, so a graph and its normalized form are unchanged.
func Diff(previous, current graph.Graph, s *schema.DocumentSchema) (*Projection, error) {
	path, differs := graph.FirstDifference(previous, current, s)
	if !differs {
		return &Projection{}, nil
	}

	doc, err := codec.Encode(current, s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode changed %s document: %w", s.Name, err)
	}
	prev, err := codec.Encode(previous, s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode previous %s document: %w", s.Name, err)
	}

	return &Projection{Changed: true, Document: doc, Path: path, previous: prev}, nil
}

// DiffCollection compares two states of an owned collection column. Elements are matched by position.
func DiffCollection(previous, current []graph.Graph, s *schema.DocumentSchema) (*Projection, error) {
	path, differs := graph.FirstCollectionDifference(previous, current, s)
	if !differs {
		return &Projection{}, nil
	}

	doc, err := codec.EncodeCollection(current, s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode changed %s collection: %w", s.Name, err)
	}
	prev, err := codec.EncodeCollection(previous, s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode previous %s collection: %w", s.Name, err)
	}

	return &Projection{Changed: true, Document: doc, Path: path, previous: prev}, nil
}

func isObject(doc []byte) bool {
	doc = bytes.TrimSpace(doc)
	return len(doc) > 0 && doc[0] == '{'
}
