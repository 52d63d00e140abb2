package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/conduit-lang/docmap/internal/orm/enums"
)

// TagName is the struct tag read by Resolve: `docmap:"MemberName,string"`.
// The first element renames the JSON member, "-" skips the field.
// Options: "string" or "numeric" fix the enum representation, "nullable" marks a value-typed reference optional.
const TagName = "docmap"

var (
	resolved sync.Map // reflect.Type -> *DocumentSchema

	timeType = reflect.TypeOf(time.Time{})
	enumType = reflect.TypeOf((*enums.Enum)(nil)).Elem()
)

// Resolve builds the document schema of a Go struct type, or pointer to struct.
// Results are cached per type for the life of the process; concurrent callers racing on the
// same type may both build it but all observe the single installed value.
// The returned schema is shared and must not be modified; Clone it first.
func Resolve(t reflect.Type) (*DocumentSchema, error) {
	if t == nil {
		return nil, &SchemaError{Type: "<nil>", Reason: "type is nil"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := resolved.Load(t); ok {
		return cached.(*DocumentSchema), nil
	}

	s, err := resolveStruct(t, make(map[reflect.Type]bool))
	if err != nil {
		return nil, err
	}

	actual, _ := resolved.LoadOrStore(t, s)
	return actual.(*DocumentSchema), nil
}

// ResolveOf is a convenience wrapper around Resolve for the dynamic type of v
func ResolveOf(v interface{}) (*DocumentSchema, error) {
	return Resolve(reflect.TypeOf(v))
}

func resolveStruct(t reflect.Type, inProgress map[reflect.Type]bool) (*DocumentSchema, error) {
	if t.Kind() != reflect.Struct || t == timeType {
		return nil, &SchemaError{Type: t.String(), Reason: "owned entity types must be structs"}
	}
	if inProgress[t] {
		return nil, &SchemaError{Type: t.Name(), Reason: "type contains itself; document schemas must form a tree"}
	}
	inProgress[t] = true
	defer delete(inProgress, t)

	s := newDocumentSchema(t.Name())
	s.GoType = t

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		tag := parseTag(f.Tag.Get(TagName))
		if tag.skip {
			continue
		}

		p, err := resolveField(t, f, tag, inProgress)
		if err != nil {
			return nil, err
		}
		s.Properties = append(s.Properties, p)
	}

	if err := s.Reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

type fieldTag struct {
	name     string
	skip     bool
	format   EnumFormat
	nullable bool
}

func parseTag(tag string) fieldTag {
	if tag == "-" {
		return fieldTag{skip: true}
	}
	parts := strings.Split(tag, ",")
	ft := fieldTag{name: parts[0]}
	for _, opt := range parts[1:] {
		switch opt {
		case "string":
			ft.format = EnumString
		case "numeric":
			ft.format = EnumNumeric
		case "nullable":
			ft.nullable = true
		}
	}
	return ft
}

func resolveField(owner reflect.Type, f reflect.StructField, tag fieldTag, inProgress map[reflect.Type]bool) (*PropertyNode, error) {
	p := &PropertyNode{
		Name:       f.Name,
		JSONName:   f.Name,
		FieldIndex: f.Index,
		EnumFormat: tag.format,
	}
	if tag.name != "" {
		p.JSONName = tag.name
	}

	t := f.Type
	unmappable := func(reason string) error {
		return &SchemaError{Type: owner.Name(), Property: f.Name, Reason: reason}
	}

	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		p.Nullable = true
		if t.Kind() == reflect.Pointer {
			return nil, unmappable(fmt.Sprintf("pointer to pointer type %s is not supported", f.Type))
		}
	}

	switch {
	case t.Kind() == reflect.Struct && t != timeType:
		child, err := resolveStruct(t, inProgress)
		if err != nil {
			return nil, err
		}
		p.Kind = KindReference
		p.Child = child
		p.Nullable = p.Nullable || tag.nullable
		return p, nil

	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 && !t.Elem().Implements(enumType):
		p.Kind = KindScalar
		p.Scalar = TypeBytes
		p.Nullable = true
		return p, nil

	case t.Kind() == reflect.Slice:
		if p.Nullable {
			return nil, unmappable("pointers to slices are not supported")
		}
		elem := t.Elem()
		if elem.Kind() == reflect.Pointer && elem.Elem().Kind() == reflect.Struct && elem.Elem() != timeType {
			elem = elem.Elem()
		}
		if elem.Kind() == reflect.Struct && elem != timeType {
			child, err := resolveStruct(elem, inProgress)
			if err != nil {
				return nil, err
			}
			p.Kind = KindCollection
			p.Child = child
			p.Nullable = true
			return p, nil
		}
		scalar, enum, err := scalarOf(elem)
		if err != nil {
			return nil, unmappable(err.Error())
		}
		p.Kind = KindPrimitiveArray
		p.Scalar = scalar
		p.Enum = enum
		p.Nullable = true
		return p, nil
	}

	scalar, enum, err := scalarOf(t)
	if err != nil {
		return nil, unmappable(err.Error())
	}
	p.Kind = KindScalar
	p.Scalar = scalar
	p.Enum = enum
	return p, nil
}

// scalarOf maps a Go type to a scalar type tag
func scalarOf(t reflect.Type) (ScalarType, *enums.Type, error) {
	if t.Implements(enumType) {
		e, ok := reflect.Zero(t).Interface().(enums.Enum)
		if !ok || e.EnumType() == nil {
			return 0, nil, fmt.Errorf("enum type %s returned no enum definition", t)
		}
		def := e.EnumType()
		if want := widthOf(t.Kind()); want == nil || *want != def.Width {
			return 0, nil, fmt.Errorf("enum type %s has kind %s but declares width %s", t, t.Kind(), def.Width)
		}
		return TypeEnum, def, nil
	}

	if t == timeType {
		return TypeTimestamp, nil, nil
	}

	switch t.Kind() {
	case reflect.Int32:
		return TypeInt, nil, nil
	case reflect.Int, reflect.Int64:
		return TypeLong, nil, nil
	case reflect.Uint8:
		return TypeByte, nil, nil
	case reflect.String:
		return TypeString, nil, nil
	case reflect.Float64:
		return TypeDouble, nil, nil
	case reflect.Bool:
		return TypeBool, nil, nil
	default:
		return 0, nil, fmt.Errorf("type %s has no primitive, enum or nested mapping", t)
	}
}

func widthOf(k reflect.Kind) *enums.Width {
	var w enums.Width
	switch k {
	case reflect.Int8:
		w = enums.Int8
	case reflect.Uint8:
		w = enums.Uint8
	case reflect.Int16:
		w = enums.Int16
	case reflect.Uint16:
		w = enums.Uint16
	case reflect.Int32:
		w = enums.Int32
	case reflect.Uint32:
		w = enums.Uint32
	case reflect.Int, reflect.Int64:
		w = enums.Int64
	case reflect.Uint, reflect.Uint64:
		w = enums.Uint64
	default:
		return nil
	}
	return &w
}
