package enums

import (
	"fmt"
)

// Member is a single named value of an enum type
type Member struct {
	Name    string
	Ordinal Ordinal
}

// Type describes an enum: its name, underlying width and members in declaration order
type Type struct {
	Name    string
	Width   Width
	Members []Member

	byName    map[string]Member
	byOrdinal map[Ordinal]Member
}

// Enum is implemented by Go enum types that can be mapped into JSON documents.
// The method must be callable on the zero value.
type Enum interface {
	EnumType() *Type
}

// NewType creates an enum type and validates that member names and ordinals are unique.
// Ordinals must carry the type's width.
func NewType(name string, width Width, members ...Member) (*Type, error) {
	if name == "" {
		return nil, fmt.Errorf("enum type name cannot be empty")
	}

	t := &Type{
		Name:      name,
		Width:     width,
		Members:   make([]Member, 0, len(members)),
		byName:    make(map[string]Member, len(members)),
		byOrdinal: make(map[Ordinal]Member, len(members)),
	}

	for _, m := range members {
		if m.Name == "" {
			return nil, fmt.Errorf("enum %s has a member with an empty name", name)
		}
		if m.Ordinal.Width() != width {
			return nil, fmt.Errorf("enum %s member %s has width %s, expected %s", name, m.Name, m.Ordinal.Width(), width)
		}
		if _, exists := t.byName[m.Name]; exists {
			return nil, fmt.Errorf("enum %s has duplicate member %s", name, m.Name)
		}
		if other, exists := t.byOrdinal[m.Ordinal]; exists {
			return nil, fmt.Errorf("enum %s members %s and %s share ordinal %s", name, other.Name, m.Name, m.Ordinal)
		}
		t.byName[m.Name] = m
		t.byOrdinal[m.Ordinal] = m
		t.Members = append(t.Members, m)
	}

	return t, nil
}

// MustType is like NewType but panics on error. Intended for package-level enum declarations.
func MustType(name string, width Width, members ...Member) *Type {
	t, err := NewType(name, width, members...)
	if err != nil {
		panic(err)
	}
	return t
}

// ByName looks up a member by its exact, case-sensitive name
func (t *Type) ByName(name string) (Member, bool) {
	m, ok := t.byName[name]
	return m, ok
}

// ByOrdinal looks up a member by its underlying value
func (t *Type) ByOrdinal(o Ordinal) (Member, bool) {
	m, ok := t.byOrdinal[o]
	return m, ok
}

// String returns the enum's name and width
func (t *Type) String() string {
	return fmt.Sprintf("%s(%s)", t.Name, t.Width)
}
