// Package mapping declares which tables hold which owned JSON documents.
// A ModelBuilder collects entity declarations; Finalize runs an ordered convention pipeline over them
// and returns an immutable Model.
package mapping

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/conduit-lang/docmap/internal/orm/enums"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// ColumnKind says whether a JSON column holds an owned reference or an owned collection
type ColumnKind int

const (
	// OwnsOne columns hold a JSON object
	OwnsOne ColumnKind = iota
	// OwnsMany columns hold a JSON array of objects
	OwnsMany
)

// String returns the string representation of the column kind
func (k ColumnKind) String() string {
	switch k {
	case OwnsOne:
		return "owns_one"
	case OwnsMany:
		return "owns_many"
	default:
		return "unknown"
	}
}

// Column is one JSON column of an entity table
type Column struct {
	// Name is the navigation name, used as the key of row values
	Name string
	// Column is the SQL column name
	Column string
	Kind   ColumnKind
	Schema *schema.DocumentSchema
	// Required columns reject SQL NULL on insert. Only meaningful for OwnsOne.
	Required bool
	// GoType is set when the document was declared from a Go struct type
	GoType reflect.Type
}

// Collection returns true if the column holds an owned collection
func (c *Column) Collection() bool {
	return c.Kind == OwnsMany
}

// Entity is a mapped table whose rows carry JSON columns
type Entity struct {
	Name    string
	Table   string
	Key     string
	KeyType schema.ScalarType
	Columns []*Column

	byName map[string]*Column
}

// Column returns the JSON column with the given navigation name
func (e *Entity) Column(name string) (*Column, bool) {
	c, ok := e.byName[name]
	return c, ok
}

// ColumnNames returns the SQL column names of the JSON columns in declaration order
func (e *Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Column
	}
	return names
}

func (e *Entity) reindex() error {
	e.byName = make(map[string]*Column, len(e.Columns))
	for _, c := range e.Columns {
		if _, exists := e.byName[c.Name]; exists {
			return fmt.Errorf("entity %s: duplicate column %s", e.Name, c.Name)
		}
		e.byName[c.Name] = c
	}
	return nil
}

// Model is a finalized set of entities
type Model struct {
	entities   map[string]*Entity
	order      []string
	enums      map[string]*enums.Type
	extensions []string
}

func newModel() *Model {
	return &Model{
		entities: make(map[string]*Entity),
		enums:    make(map[string]*enums.Type),
	}
}

// Entity returns the entity with the given name
func (m *Model) Entity(name string) (*Entity, bool) {
	e, ok := m.entities[name]
	return e, ok
}

// Entities returns all entities in declaration order
func (m *Model) Entities() []*Entity {
	result := make([]*Entity, 0, len(m.order))
	for _, name := range m.order {
		result = append(result, m.entities[name])
	}
	return result
}

// Enum returns an enum type referenced by any document of the model
func (m *Model) Enum(name string) (*enums.Type, bool) {
	t, ok := m.enums[name]
	return t, ok
}

// EnumNames returns the names of every enum type used by the model, sorted
func (m *Model) EnumNames() []string {
	names := make([]string, 0, len(m.enums))
	for name := range m.enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddExtension records a database extension the model requires. Duplicates are ignored.
func (m *Model) AddExtension(name string) {
	for _, existing := range m.extensions {
		if existing == name {
			return
		}
	}
	m.extensions = append(m.extensions, name)
}

// Extensions returns the database extensions the model requires, in registration order
func (m *Model) Extensions() []string {
	return append([]string(nil), m.extensions...)
}

// Walk calls fn for every JSON column of every entity, in declaration order
func (m *Model) Walk(fn func(e *Entity, c *Column) error) error {
	for _, e := range m.Entities() {
		for _, c := range e.Columns {
			if err := fn(e, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// WalkProperties calls fn for every property node reachable from any JSON column
func (m *Model) WalkProperties(fn func(e *Entity, c *Column, path string, p *schema.PropertyNode) error) error {
	return m.Walk(func(e *Entity, c *Column) error {
		return c.Schema.Walk(func(path string, p *schema.PropertyNode) error {
			return fn(e, c, path, p)
		})
	})
}
