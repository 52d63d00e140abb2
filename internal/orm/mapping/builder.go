package mapping

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// ModelBuilder collects entity declarations. It is not safe for concurrent use.
type ModelBuilder struct {
	model       *Model
	conventions *ConventionSet
	logger      *zap.Logger
	errors      []error
	finalized   bool
}

// NewModelBuilder creates a builder that finalizes with the given conventions.
// A nil convention set means DefaultConventionSet(DefaultOptions()).
func NewModelBuilder(conventions *ConventionSet, logger *zap.Logger) *ModelBuilder {
	if conventions == nil {
		conventions = DefaultConventionSet(DefaultOptions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelBuilder{
		model:       newModel(),
		conventions: conventions,
		logger:      logger,
		errors:      make([]error, 0),
	}
}

// Entity declares an entity, or returns the builder of an already declared one
func (b *ModelBuilder) Entity(name string) *EntityBuilder {
	if e, ok := b.model.entities[name]; ok {
		return &EntityBuilder{builder: b, entity: e}
	}
	e := &Entity{Name: name, byName: make(map[string]*Column)}
	if name == "" {
		b.errors = append(b.errors, errors.New("entity name cannot be empty"))
	}
	b.model.entities[name] = e
	b.model.order = append(b.model.order, name)
	return &EntityBuilder{builder: b, entity: e}
}

// Finalize clones every document schema, applies the model-finalizing conventions in order
// and returns the model. Schemas returned by schema.Resolve are shared process-wide, so conventions
// only ever see the clones.
func (b *ModelBuilder) Finalize() (*Model, error) {
	if b.finalized {
		return nil, errors.New("model already finalized")
	}
	if len(b.errors) > 0 {
		return nil, errors.Join(b.errors...)
	}

	for _, e := range b.model.Entities() {
		for _, c := range e.Columns {
			c.Schema = c.Schema.Clone()
		}
	}

	for _, convention := range b.conventions.ModelFinalizing {
		if err := convention.Apply(b.model); err != nil {
			return nil, fmt.Errorf("convention %s: %w", convention.Name, err)
		}
		b.logger.Debug("applied model convention", zap.String("convention", convention.Name))
	}

	b.finalized = true
	b.logger.Info("model finalized",
		zap.Int("entities", len(b.model.order)),
		zap.Int("enums", len(b.model.enums)),
	)
	return b.model, nil
}

// EntityBuilder configures one entity
type EntityBuilder struct {
	builder *ModelBuilder
	entity  *Entity
}

// ToTable sets the table name. Without it the table naming convention derives one.
func (eb *EntityBuilder) ToTable(table string) *EntityBuilder {
	eb.entity.Table = table
	return eb
}

// HasKey sets the key column and its type; int, long and string keys are supported
func (eb *EntityBuilder) HasKey(column string, typ schema.ScalarType) *EntityBuilder {
	eb.entity.Key = column
	eb.entity.KeyType = typ
	return eb
}

// OwnsOne maps an owned reference stored as a JSON object
func (eb *EntityBuilder) OwnsOne(name string, s *schema.DocumentSchema) *ColumnBuilder {
	return eb.owns(name, OwnsOne, s, nil)
}

// OwnsMany maps an owned collection stored as a JSON array
func (eb *EntityBuilder) OwnsMany(name string, s *schema.DocumentSchema) *ColumnBuilder {
	return eb.owns(name, OwnsMany, s, nil)
}

// OwnsOneOf maps an owned reference whose schema is resolved from the Go type of sample
func (eb *EntityBuilder) OwnsOneOf(name string, sample interface{}) *ColumnBuilder {
	return eb.ownsType(name, OwnsOne, reflect.TypeOf(sample))
}

// OwnsManyOf maps an owned collection whose element schema is resolved from sample,
// a struct or a slice of structs
func (eb *EntityBuilder) OwnsManyOf(name string, sample interface{}) *ColumnBuilder {
	t := reflect.TypeOf(sample)
	if t != nil && t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return eb.ownsType(name, OwnsMany, t)
}

func (eb *EntityBuilder) ownsType(name string, kind ColumnKind, t reflect.Type) *ColumnBuilder {
	s, err := schema.Resolve(t)
	if err != nil {
		eb.builder.errors = append(eb.builder.errors, fmt.Errorf("entity %s column %s: %w", eb.entity.Name, name, err))
		return &ColumnBuilder{column: &Column{Name: name, Kind: kind}}
	}
	return eb.owns(name, kind, s, s.GoType)
}

func (eb *EntityBuilder) owns(name string, kind ColumnKind, s *schema.DocumentSchema, goType reflect.Type) *ColumnBuilder {
	c := &Column{Name: name, Kind: kind, Schema: s, GoType: goType}
	if s == nil {
		eb.builder.errors = append(eb.builder.errors, fmt.Errorf("entity %s column %s: document schema is nil", eb.entity.Name, name))
		return &ColumnBuilder{column: c}
	}
	if _, exists := eb.entity.byName[name]; exists {
		eb.builder.errors = append(eb.builder.errors, fmt.Errorf("entity %s: duplicate column %s", eb.entity.Name, name))
		return &ColumnBuilder{column: c}
	}
	eb.entity.Columns = append(eb.entity.Columns, c)
	eb.entity.byName[name] = c
	return &ColumnBuilder{column: c}
}

// ColumnBuilder configures one JSON column
type ColumnBuilder struct {
	column *Column
}

// ToColumn sets the SQL column name. Without it the column is named after the navigation in snake_case.
func (cb *ColumnBuilder) ToColumn(name string) *ColumnBuilder {
	cb.column.Column = name
	return cb
}

// Required makes an owned reference non-nullable
func (cb *ColumnBuilder) Required() *ColumnBuilder {
	cb.column.Required = true
	return cb
}
