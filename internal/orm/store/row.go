package store

import (
	"fmt"

	"github.com/conduit-lang/docmap/internal/orm/binding"
	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/mapping"
	"github.com/conduit-lang/docmap/internal/orm/tracking"
)

// Row is one entity row: its key and the live graphs of its JSON columns.
// Graphs returned by Reference and Collection may be mutated in place; SaveChanges
// compares them against the state they were loaded with.
type Row struct {
	entity  *mapping.Entity
	key     interface{}
	tracker *tracking.RowTracker
}

func newRow(e *mapping.Entity, key interface{}, loaded map[string]interface{}) (*Row, error) {
	specs := make([]tracking.ColumnSpec, len(e.Columns))
	for i, c := range e.Columns {
		specs[i] = tracking.ColumnSpec{Name: c.Name, Schema: c.Schema, Collection: c.Collection()}
	}
	tracker, err := tracking.NewRowTracker(specs, loaded)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.Name, err)
	}
	return &Row{entity: e, key: key, tracker: tracker}, nil
}

// Entity returns the entity the row belongs to
func (r *Row) Entity() *mapping.Entity {
	return r.entity
}

// Key returns the primary key value
func (r *Row) Key() interface{} {
	return r.key
}

// Tracker returns the change tracker of the row's JSON columns
func (r *Row) Tracker() *tracking.RowTracker {
	return r.tracker
}

// Reference returns the live graph of an owned reference column, nil when the column is NULL
func (r *Row) Reference(column string) graph.Graph {
	g, _ := r.tracker.Current(column).(graph.Graph)
	return g
}

// Collection returns the live items of an owned collection column
func (r *Row) Collection(column string) []graph.Graph {
	items, _ := r.tracker.Current(column).([]graph.Graph)
	return items
}

// Set replaces the value of a JSON column. The value is a graph.Graph, a []graph.Graph, nil,
// or a Go struct (or slice of structs) matching the column's document schema.
func (r *Row) Set(column string, value interface{}) error {
	c, ok := r.entity.Column(column)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.entity.Name, column)
	}

	switch value.(type) {
	case nil, graph.Graph, []graph.Graph:
	default:
		var err error
		if c.Collection() {
			value, err = binding.CollectionToGraphs(value, c.Schema)
		} else {
			value, err = binding.ToGraphWith(value, c.Schema)
		}
		if err != nil {
			return fmt.Errorf("%s.%s: %w", r.entity.Name, column, err)
		}
	}
	return r.tracker.SetColumn(column, value)
}

// Bind copies a JSON column into out: a pointer to a struct for owned references,
// or a pointer to a slice of structs for owned collections
func (r *Row) Bind(column string, out interface{}) error {
	c, ok := r.entity.Column(column)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.entity.Name, column)
	}
	if c.Collection() {
		return binding.CollectionFromGraphs(r.Collection(column), c.Schema, out)
	}
	return binding.FromGraph(r.Reference(column), c.Schema, out)
}
