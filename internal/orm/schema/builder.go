package schema

import (
	"errors"

	"github.com/conduit-lang/docmap/internal/orm/enums"
)

// Builder builds a DocumentSchema declaratively, property by property, in declaration order.
// Errors are collected and reported by Build.
type Builder struct {
	schema *DocumentSchema
	errors []error
}

// NewBuilder creates a new schema builder for an owned entity type name
func NewBuilder(name string) *Builder {
	return &Builder{
		schema: newDocumentSchema(name),
		errors: make([]error, 0),
	}
}

// Scalar adds a non-nullable scalar property
func (b *Builder) Scalar(name string, typ ScalarType) *Builder {
	return b.add(&PropertyNode{Name: name, Kind: KindScalar, Scalar: typ})
}

// NullableScalar adds a nullable scalar property
func (b *Builder) NullableScalar(name string, typ ScalarType) *Builder {
	return b.add(&PropertyNode{Name: name, Kind: KindScalar, Scalar: typ, Nullable: true})
}

// Enum adds an enum property
func (b *Builder) Enum(name string, typ *enums.Type, nullable bool, format EnumFormat) *Builder {
	return b.add(&PropertyNode{
		Name:       name,
		Kind:       KindScalar,
		Scalar:     TypeEnum,
		Enum:       typ,
		EnumFormat: format,
		Nullable:   nullable,
	})
}

// Reference adds an owned reference
func (b *Builder) Reference(name string, child *DocumentSchema, nullable bool) *Builder {
	return b.add(&PropertyNode{Name: name, Kind: KindReference, Child: child, Nullable: nullable})
}

// Collection adds an owned collection
func (b *Builder) Collection(name string, child *DocumentSchema) *Builder {
	return b.add(&PropertyNode{Name: name, Kind: KindCollection, Child: child, Nullable: true})
}

// PrimitiveArray adds an array of scalars. Use EnumArray for arrays of enums.
func (b *Builder) PrimitiveArray(name string, elem ScalarType) *Builder {
	return b.add(&PropertyNode{Name: name, Kind: KindPrimitiveArray, Scalar: elem, Nullable: true})
}

// EnumArray adds an array of enum values
func (b *Builder) EnumArray(name string, typ *enums.Type, format EnumFormat) *Builder {
	return b.add(&PropertyNode{
		Name:       name,
		Kind:       KindPrimitiveArray,
		Scalar:     TypeEnum,
		Enum:       typ,
		EnumFormat: format,
		Nullable:   true,
	})
}

// JSONName overrides the JSON member name of the most recently added property
func (b *Builder) JSONName(member string) *Builder {
	if n := len(b.schema.Properties); n > 0 {
		b.schema.Properties[n-1].JSONName = member
	}
	return b
}

// Add appends a fully specified property node
func (b *Builder) Add(p *PropertyNode) *Builder {
	return b.add(p)
}

func (b *Builder) add(p *PropertyNode) *Builder {
	if p.JSONName == "" {
		p.JSONName = p.Name
	}
	if b.schema.HasProperty(p.Name) {
		b.errors = append(b.errors, &SchemaError{Type: b.schema.Name, Property: p.Name, Reason: "duplicate property name"})
		return b
	}
	b.schema.Properties = append(b.schema.Properties, p)
	b.schema.byName[p.Name] = p
	return b
}

// Build validates and returns the schema
func (b *Builder) Build() (*DocumentSchema, error) {
	if len(b.errors) > 0 {
		return nil, errors.Join(b.errors...)
	}
	if err := Validate(b.schema); err != nil {
		return nil, err
	}
	return b.schema, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *DocumentSchema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
