package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnmappable is wrapped by every SchemaError
var ErrUnmappable = errors.New("unmappable schema")

// SchemaError reports a type or property that cannot be mapped into a JSON document.
// It is raised while building the model, never per row.
type SchemaError struct {
	Type     string
	Property string
	Reason   string
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema ")
	b.WriteString(e.Type)
	if e.Property != "" {
		b.WriteString(".")
		b.WriteString(e.Property)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Unwrap returns ErrUnmappable
func (e *SchemaError) Unwrap() error {
	return ErrUnmappable
}

// Validate checks the structural invariants of a schema tree:
// the tree has no cycles, names are unique per level, enum nodes carry an enum type,
// references and collections carry a child schema and scalars do not.
func Validate(s *DocumentSchema) error {
	return validate(s, make(map[*DocumentSchema]bool))
}

func validate(s *DocumentSchema, inProgress map[*DocumentSchema]bool) error {
	if s == nil {
		return &SchemaError{Type: "<nil>", Reason: "schema is nil"}
	}
	if inProgress[s] {
		return &SchemaError{Type: s.Name, Reason: "schema contains itself; document schemas must form a tree"}
	}
	inProgress[s] = true
	defer delete(inProgress, s)

	if err := s.Reindex(); err != nil {
		return err
	}

	for _, p := range s.Properties {
		if err := validateProperty(s, p); err != nil {
			return err
		}
		if p.Child != nil {
			if err := validate(p.Child, inProgress); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateProperty(s *DocumentSchema, p *PropertyNode) error {
	if p.Name == "" {
		return &SchemaError{Type: s.Name, Reason: "property with empty name"}
	}
	if p.JSONName == "" {
		return &SchemaError{Type: s.Name, Property: p.Name, Reason: "empty JSON name"}
	}

	switch p.Kind {
	case KindScalar, KindPrimitiveArray:
		if p.Child != nil {
			return &SchemaError{Type: s.Name, Property: p.Name, Reason: fmt.Sprintf("%s property cannot own a child schema", p.Kind)}
		}
		if p.Scalar < TypeInt || p.Scalar > TypeTimestamp {
			return &SchemaError{Type: s.Name, Property: p.Name, Reason: fmt.Sprintf("unknown scalar type %d", p.Scalar)}
		}
		if p.Scalar == TypeEnum && p.Enum == nil {
			return &SchemaError{Type: s.Name, Property: p.Name, Reason: "enum property without an enum type"}
		}
		if p.Scalar != TypeEnum && p.Enum != nil {
			return &SchemaError{Type: s.Name, Property: p.Name, Reason: fmt.Sprintf("%s property cannot carry an enum type", p.Scalar)}
		}
	case KindReference, KindCollection:
		if p.Child == nil {
			return &SchemaError{Type: s.Name, Property: p.Name, Reason: fmt.Sprintf("%s property without a child schema", p.Kind)}
		}
	default:
		return &SchemaError{Type: s.Name, Property: p.Name, Reason: fmt.Sprintf("unknown kind %d", p.Kind)}
	}
	return nil
}
