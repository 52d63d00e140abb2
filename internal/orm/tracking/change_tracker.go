package tracking

import (
	"fmt"
	"sort"
	"sync"

	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// ColumnSpec describes one JSON column of a tracked row
type ColumnSpec struct {
	Name       string
	Schema     *schema.DocumentSchema
	Collection bool
}

// ColumnChange represents a change to a single JSON column
type ColumnChange struct {
	Column     string
	OldValue   interface{}
	NewValue   interface{}
	Projection *Projection
}

// RowTracker tracks the JSON columns of one loaded row.
// The original state is snapshotted on load; the current state is the live graph the caller mutates,
// so changes are computed when asked for.
type RowTracker struct {
	mu       sync.RWMutex
	columns  map[string]ColumnSpec
	order    []string
	original map[string]interface{}
	current  map[string]interface{}
}

// NewRowTracker creates a tracker for a row whose columns were loaded with the given values.
// Reference columns hold graph.Graph, collection columns hold []graph.Graph.
func NewRowTracker(columns []ColumnSpec, loaded map[string]interface{}) (*RowTracker, error) {
	rt := &RowTracker{
		columns:  make(map[string]ColumnSpec, len(columns)),
		order:    make([]string, 0, len(columns)),
		original: make(map[string]interface{}, len(columns)),
		current:  make(map[string]interface{}, len(columns)),
	}

	for _, c := range columns {
		if _, exists := rt.columns[c.Name]; exists {
			return nil, fmt.Errorf("column %s tracked twice", c.Name)
		}
		value, err := checkColumnValue(c, loaded[c.Name])
		if err != nil {
			return nil, err
		}
		rt.columns[c.Name] = c
		rt.order = append(rt.order, c.Name)
		rt.current[c.Name] = value
		rt.original[c.Name] = snapshot(value)
	}
	return rt, nil
}

func checkColumnValue(c ColumnSpec, v interface{}) (interface{}, error) {
	if c.Collection {
		switch items := v.(type) {
		case nil:
			return []graph.Graph{}, nil
		case []graph.Graph:
			if items == nil {
				return []graph.Graph{}, nil
			}
			return items, nil
		}
		return nil, fmt.Errorf("column %s holds a collection, got %T", c.Name, v)
	}

	switch g := v.(type) {
	case nil:
		return graph.Graph(nil), nil
	case graph.Graph:
		return g, nil
	}
	return nil, fmt.Errorf("column %s holds a reference, got %T", c.Name, v)
}

func snapshot(v interface{}) interface{} {
	switch val := v.(type) {
	case graph.Graph:
		return val.Clone()
	case []graph.Graph:
		return graph.CloneCollection(val)
	}
	return v
}

// Columns returns the tracked column names in declaration order
func (rt *RowTracker) Columns() []string {
	return append([]string(nil), rt.order...)
}

// Current returns the live value of a column
func (rt *RowTracker) Current(column string) interface{} {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.current[column]
}

// PreviousValue returns the value the column had when loaded or last reset
func (rt *RowTracker) PreviousValue(column string) interface{} {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.original[column]
}

// SetColumn replaces the live value of a column
func (rt *RowTracker) SetColumn(column string, value interface{}) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	c, ok := rt.columns[column]
	if !ok {
		return fmt.Errorf("column %s is not tracked", column)
	}
	value, err := checkColumnValue(c, value)
	if err != nil {
		return err
	}
	rt.current[column] = value
	return nil
}

// Changed returns true if the specified column differs from its snapshot
func (rt *RowTracker) Changed(column string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	c, ok := rt.columns[column]
	if !ok {
		return false
	}
	return rt.differs(c)
}

func (rt *RowTracker) differs(c ColumnSpec) bool {
	if c.Collection {
		prev, _ := rt.original[c.Name].([]graph.Graph)
		cur, _ := rt.current[c.Name].([]graph.Graph)
		_, differs := graph.FirstCollectionDifference(prev, cur, c.Schema)
		return differs
	}
	prev, _ := rt.original[c.Name].(graph.Graph)
	cur, _ := rt.current[c.Name].(graph.Graph)
	_, differs := graph.FirstDifference(prev, cur, c.Schema)
	return differs
}

// ChangedColumns returns the changed column names in declaration order
func (rt *RowTracker) ChangedColumns() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	columns := make([]string, 0, len(rt.order))
	for _, name := range rt.order {
		if rt.differs(rt.columns[name]) {
			columns = append(columns, name)
		}
	}
	return columns
}

// HasChanges returns true if any column has changed
func (rt *RowTracker) HasChanges() bool {
	return len(rt.ChangedColumns()) > 0
}

// Changes projects every changed column. Unchanged columns are absent from the result.
func (rt *RowTracker) Changes() (map[string]*ColumnChange, error) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	result := make(map[string]*ColumnChange)
	for _, name := range rt.order {
		c := rt.columns[name]

		var (
			projection *Projection
			err        error
		)
		if c.Collection {
			prev, _ := rt.original[name].([]graph.Graph)
			cur, _ := rt.current[name].([]graph.Graph)
			projection, err = DiffCollection(prev, cur, c.Schema)
		} else {
			prev, _ := rt.original[name].(graph.Graph)
			cur, _ := rt.current[name].(graph.Graph)
			projection, err = Diff(prev, cur, c.Schema)
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		if projection.Unchanged() {
			continue
		}

		result[name] = &ColumnChange{
			Column:     name,
			OldValue:   rt.original[name],
			NewValue:   rt.current[name],
			Projection: projection,
		}
	}
	return result, nil
}

// ChangedDocuments returns the documents to persist keyed by column, for building UPDATE statements
func (rt *RowTracker) ChangedDocuments() (map[string][]byte, error) {
	changes, err := rt.Changes()
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(changes))
	for name, change := range changes {
		result[name] = change.Projection.Document
	}
	return result, nil
}

// Reset takes a new snapshot of the current state.
// This should be called after a successful save operation.
func (rt *RowTracker) Reset() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for name, v := range rt.current {
		rt.original[name] = snapshot(v)
	}
}

// SortedColumns returns the names of the given changes in lexical order
func SortedColumns(changes map[string]*ColumnChange) []string {
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
