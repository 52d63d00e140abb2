// Package schema provides type definitions for document schemas: the property trees that describe how
// an owned entity graph is laid out inside a JSON column, with explicit nullability, enum
// representation and nested owned references and collections.
package schema

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/docmap/internal/orm/enums"
)

// Kind is the structural kind of a property node
type Kind int

const (
	KindScalar Kind = iota
	KindReference
	KindCollection
	KindPrimitiveArray
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindReference:
		return "reference"
	case KindCollection:
		return "collection"
	case KindPrimitiveArray:
		return "array"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "scalar", "":
		return KindScalar, nil
	case "reference":
		return KindReference, nil
	case "collection":
		return KindCollection, nil
	case "array":
		return KindPrimitiveArray, nil
	default:
		return 0, fmt.Errorf("unknown property kind: %s", s)
	}
}

// ScalarType is the type tag of a scalar leaf or of a primitive array element
type ScalarType int

const (
	TypeInt ScalarType = iota
	TypeLong
	TypeByte
	TypeString
	TypeDouble
	TypeBool
	TypeEnum
	TypeBytes
	TypeTimestamp
)

// String returns the string representation of the scalar type
func (t ScalarType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeByte:
		return "byte"
	case TypeString:
		return "string"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	case TypeEnum:
		return "enum"
	case TypeBytes:
		return "bytes"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// ParseScalarType converts a string to a ScalarType
func ParseScalarType(s string) (ScalarType, error) {
	switch s {
	case "int":
		return TypeInt, nil
	case "long":
		return TypeLong, nil
	case "byte":
		return TypeByte, nil
	case "string":
		return TypeString, nil
	case "double":
		return TypeDouble, nil
	case "bool":
		return TypeBool, nil
	case "enum":
		return TypeEnum, nil
	case "bytes":
		return TypeBytes, nil
	case "timestamp":
		return TypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unknown scalar type: %s", s)
	}
}

// EnumFormat selects how enum values are written to JSON
type EnumFormat int

const (
	// EnumFormatUnset defers to the model-wide default applied by conventions; encoded as numeric
	EnumFormatUnset EnumFormat = iota
	EnumNumeric
	EnumString
)

// String returns the string representation of the enum format
func (f EnumFormat) String() string {
	switch f {
	case EnumNumeric:
		return "numeric"
	case EnumString:
		return "string"
	default:
		return "unset"
	}
}

// ParseEnumFormat converts a string to an EnumFormat
func ParseEnumFormat(s string) (EnumFormat, error) {
	switch s {
	case "":
		return EnumFormatUnset, nil
	case "numeric":
		return EnumNumeric, nil
	case "string":
		return EnumString, nil
	default:
		return 0, fmt.Errorf("unknown enum format: %s", s)
	}
}

// DocumentSchema is the property tree of one owned entity type
type DocumentSchema struct {
	Name       string
	GoType     reflect.Type // nil for schemas built declaratively
	Properties []*PropertyNode

	byName     map[string]*PropertyNode
	byJSONName map[string]*PropertyNode
}

// newDocumentSchema creates an empty schema
func newDocumentSchema(name string) *DocumentSchema {
	return &DocumentSchema{
		Name:       name,
		Properties: make([]*PropertyNode, 0),
		byName:     make(map[string]*PropertyNode),
		byJSONName: make(map[string]*PropertyNode),
	}
}

// Property returns the property with the given name
func (s *DocumentSchema) Property(name string) (*PropertyNode, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// JSONProperty returns the property stored under the given JSON member name
func (s *DocumentSchema) JSONProperty(member string) (*PropertyNode, bool) {
	p, ok := s.byJSONName[member]
	return p, ok
}

// HasProperty returns true if the schema has a property with the given name
func (s *DocumentSchema) HasProperty(name string) bool {
	_, exists := s.byName[name]
	return exists
}

// Reindex rebuilds the lookup maps after property names have been changed in place.
// It fails if two properties end up with the same name or JSON member name.
func (s *DocumentSchema) Reindex() error {
	byName := make(map[string]*PropertyNode, len(s.Properties))
	byJSONName := make(map[string]*PropertyNode, len(s.Properties))
	for _, p := range s.Properties {
		if _, exists := byName[p.Name]; exists {
			return &SchemaError{Type: s.Name, Property: p.Name, Reason: "duplicate property name"}
		}
		if other, exists := byJSONName[p.JSONName]; exists {
			return &SchemaError{Type: s.Name, Property: p.Name, Reason: fmt.Sprintf("JSON name %q already used by %s", p.JSONName, other.Name)}
		}
		byName[p.Name] = p
		byJSONName[p.JSONName] = p
	}
	s.byName = byName
	s.byJSONName = byJSONName
	return nil
}

// Clone returns a deep copy of the schema tree. Enum types are shared.
func (s *DocumentSchema) Clone() *DocumentSchema {
	if s == nil {
		return nil
	}
	c := newDocumentSchema(s.Name)
	c.GoType = s.GoType
	for _, p := range s.Properties {
		cp := *p
		cp.FieldIndex = append([]int(nil), p.FieldIndex...)
		cp.Child = p.Child.Clone()
		c.Properties = append(c.Properties, &cp)
		c.byName[cp.Name] = &cp
		c.byJSONName[cp.JSONName] = &cp
	}
	return c
}

// Walk visits every property node depth first in declaration order.
// Returning an error stops the walk.
func (s *DocumentSchema) Walk(fn func(path string, p *PropertyNode) error) error {
	return s.walk("$", fn)
}

func (s *DocumentSchema) walk(prefix string, fn func(string, *PropertyNode) error) error {
	for _, p := range s.Properties {
		path := prefix + "." + p.JSONName
		if err := fn(path, p); err != nil {
			return err
		}
		if p.Child != nil {
			childPath := path
			if p.Kind == KindCollection {
				childPath += "[*]"
			}
			if err := p.Child.walk(childPath, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// PropertyNode is one property of a document schema
type PropertyNode struct {
	Name     string // property name used as the EntityGraph key
	JSONName string // JSON member name
	Kind     Kind
	Nullable bool

	// Scalar is the leaf type for scalars and the element type for primitive arrays
	Scalar     ScalarType
	Enum       *enums.Type
	EnumFormat EnumFormat

	// Child is set for references and collections
	Child *DocumentSchema

	// FieldIndex locates the Go struct field for schemas resolved from Go types
	FieldIndex []int
}

// IsEnum returns true if the node holds enum values, either directly or as array elements
func (p *PropertyNode) IsEnum() bool {
	return p.Scalar == TypeEnum && (p.Kind == KindScalar || p.Kind == KindPrimitiveArray)
}

// String returns a compact type description like "int?", "enum(Color)!" or "collection<Branch>"
func (p *PropertyNode) String() string {
	var s string
	switch p.Kind {
	case KindReference:
		s = fmt.Sprintf("reference<%s>", p.Child.Name)
	case KindCollection:
		s = fmt.Sprintf("collection<%s>", p.Child.Name)
	case KindPrimitiveArray:
		s = fmt.Sprintf("array<%s>", p.scalarString())
	default:
		s = p.scalarString()
	}

	if p.Nullable {
		s += "?"
	} else {
		s += "!"
	}
	return s
}

func (p *PropertyNode) scalarString() string {
	if p.Scalar == TypeEnum && p.Enum != nil {
		return fmt.Sprintf("enum(%s)", p.Enum.Name)
	}
	return p.Scalar.String()
}
