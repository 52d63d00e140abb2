// Package binding converts Go struct values to entity graphs and back, using the field
// indexes recorded by schema.Resolve.
package binding

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/conduit-lang/docmap/internal/orm/enums"
	"github.com/conduit-lang/docmap/internal/orm/graph"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// ErrNotBindable is returned when a value or schema cannot take part in binding
var ErrNotBindable = errors.New("not bindable")

// BindError reports the property at which binding failed
type BindError struct {
	Path   string
	Reason string
}

// Error implements the error interface
func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrNotBindable
func (e *BindError) Unwrap() error {
	return ErrNotBindable
}

func bindErr(path, format string, args ...interface{}) error {
	return &BindError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// ToGraph converts a struct, or pointer to struct, into a graph along with its resolved schema.
// A nil pointer yields a nil graph.
func ToGraph(v interface{}) (graph.Graph, *schema.DocumentSchema, error) {
	s, err := schema.ResolveOf(v)
	if err != nil {
		return nil, nil, err
	}
	g, err := ToGraphWith(v, s)
	if err != nil {
		return nil, nil, err
	}
	return g, s, nil
}

// ToGraphWith converts v using an already resolved schema, possibly a finalized clone
func ToGraphWith(v interface{}, s *schema.DocumentSchema) (graph.Graph, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, bindErr("$", "expected a struct, got %T", v)
	}
	return structToGraph("$", rv, s)
}

// CollectionToGraphs converts a slice of structs, or of pointers to structs, into an owned collection
func CollectionToGraphs(v interface{}, s *schema.DocumentSchema) ([]graph.Graph, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice {
		return nil, bindErr("$", "expected a slice, got %T", v)
	}
	return sliceToGraphs("$", rv, s)
}

func structToGraph(path string, rv reflect.Value, s *schema.DocumentSchema) (graph.Graph, error) {
	g := make(graph.Graph, len(s.Properties))
	for _, p := range s.Properties {
		propPath := path + "." + p.JSONName
		if len(p.FieldIndex) == 0 {
			return nil, bindErr(propPath, "property has no Go field")
		}
		field, err := fieldByIndex(rv, p.FieldIndex)
		if err != nil {
			return nil, bindErr(propPath, "%v", err)
		}

		v, err := valueToGraph(propPath, field, p)
		if err != nil {
			return nil, err
		}
		g[p.Name] = v
	}
	return g, nil
}

func valueToGraph(path string, field reflect.Value, p *schema.PropertyNode) (interface{}, error) {
	switch p.Kind {
	case schema.KindReference:
		if field.Kind() == reflect.Pointer {
			if field.IsNil() {
				return nil, nil
			}
			field = field.Elem()
		}
		return structToGraph(path, field, p.Child)

	case schema.KindCollection:
		return sliceToGraphs(path, field, p.Child)

	case schema.KindPrimitiveArray:
		values := make([]interface{}, 0, field.Len())
		for i := 0; i < field.Len(); i++ {
			v, err := scalarToGraph(fmt.Sprintf("%s[%d]", path, i), field.Index(i), p)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil

	default:
		if field.Kind() == reflect.Pointer {
			if field.IsNil() {
				return nil, nil
			}
			field = field.Elem()
		}
		if p.Scalar == schema.TypeBytes && field.IsNil() {
			return nil, nil
		}
		return scalarToGraph(path, field, p)
	}
}

func sliceToGraphs(path string, rv reflect.Value, s *schema.DocumentSchema) ([]graph.Graph, error) {
	items := make([]graph.Graph, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		elem := rv.Index(i)
		if elem.Kind() == reflect.Pointer {
			if elem.IsNil() {
				return nil, bindErr(elemPath, "nil element in owned collection")
			}
			elem = elem.Elem()
		}
		item, err := structToGraph(elemPath, elem, s)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func scalarToGraph(path string, v reflect.Value, p *schema.PropertyNode) (interface{}, error) {
	switch p.Scalar {
	case schema.TypeInt:
		return int32(v.Int()), nil
	case schema.TypeLong:
		return v.Int(), nil
	case schema.TypeByte:
		return uint8(v.Uint()), nil
	case schema.TypeString:
		return v.String(), nil
	case schema.TypeDouble:
		return v.Float(), nil
	case schema.TypeBool:
		return v.Bool(), nil
	case schema.TypeBytes:
		return append([]byte(nil), v.Bytes()...), nil
	case schema.TypeTimestamp:
		t, ok := v.Interface().(time.Time)
		if !ok {
			return nil, bindErr(path, "expected time.Time, got %s", v.Type())
		}
		return t, nil
	case schema.TypeEnum:
		var o enums.Ordinal
		if p.Enum.Width.Signed() {
			o = enums.Signed(p.Enum.Width, v.Int())
		} else {
			o = enums.Unsigned(p.Enum.Width, v.Uint())
		}
		if m, ok := p.Enum.ByOrdinal(o); ok {
			return m, nil
		}
		return enums.Member{Ordinal: o}, nil
	}
	return nil, bindErr(path, "unknown scalar type %s", p.Scalar)
}

// FromGraph writes g into out, which must be a non-nil pointer to a struct of the type s was resolved from.
// A nil graph leaves out at its zero value.
func FromGraph(g graph.Graph, s *schema.DocumentSchema, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return bindErr("$", "expected a non-nil pointer to a struct, got %T", out)
	}
	target := rv.Elem()
	target.Set(reflect.Zero(target.Type()))
	if g == nil {
		return nil
	}
	return graphToStruct("$", g, target, s)
}

// CollectionFromGraphs writes an owned collection into out, a non-nil pointer to a slice of structs
// or of pointers to structs
func CollectionFromGraphs(items []graph.Graph, s *schema.DocumentSchema, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return bindErr("$", "expected a non-nil pointer to a slice, got %T", out)
	}
	return graphsToSlice("$", items, rv.Elem(), s)
}

func graphToStruct(path string, g graph.Graph, target reflect.Value, s *schema.DocumentSchema) error {
	for _, p := range s.Properties {
		propPath := path + "." + p.JSONName
		if len(p.FieldIndex) == 0 {
			return bindErr(propPath, "property has no Go field")
		}
		field, err := fieldByIndex(target, p.FieldIndex)
		if err != nil {
			return bindErr(propPath, "%v", err)
		}
		if err := graphToValue(propPath, g.Get(p), field, p); err != nil {
			return err
		}
	}
	return nil
}

func graphToValue(path string, v interface{}, field reflect.Value, p *schema.PropertyNode) error {
	switch p.Kind {
	case schema.KindReference:
		ref, _ := v.(graph.Graph)
		if field.Kind() == reflect.Pointer {
			if ref == nil {
				field.Set(reflect.Zero(field.Type()))
				return nil
			}
			field.Set(reflect.New(field.Type().Elem()))
			field = field.Elem()
		}
		if ref == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		return graphToStruct(path, ref, field, p.Child)

	case schema.KindCollection:
		items, _ := v.([]graph.Graph)
		return graphsToSlice(path, items, field, p.Child)

	case schema.KindPrimitiveArray:
		values, _ := v.([]interface{})
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, elem := range values {
			if err := setScalar(fmt.Sprintf("%s[%d]", path, i), elem, slice.Index(i), p); err != nil {
				return err
			}
		}
		field.Set(slice)
		return nil

	default:
		if v == nil {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		if field.Kind() == reflect.Pointer {
			field.Set(reflect.New(field.Type().Elem()))
			field = field.Elem()
		}
		return setScalar(path, v, field, p)
	}
}

func graphsToSlice(path string, items []graph.Graph, field reflect.Value, s *schema.DocumentSchema) error {
	slice := reflect.MakeSlice(field.Type(), len(items), len(items))
	elemType := field.Type().Elem()
	for i, item := range items {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			return bindErr(elemPath, "nil element in owned collection")
		}
		elem := slice.Index(i)
		if elemType.Kind() == reflect.Pointer {
			elem.Set(reflect.New(elemType.Elem()))
			elem = elem.Elem()
		}
		if err := graphToStruct(elemPath, item, elem, s); err != nil {
			return err
		}
	}
	field.Set(slice)
	return nil
}

func setScalar(path string, v interface{}, field reflect.Value, p *schema.PropertyNode) error {
	mismatch := func() error {
		return bindErr(path, "cannot assign %T to %s field of type %s", v, p.Scalar, field.Type())
	}

	switch p.Scalar {
	case schema.TypeInt:
		n, ok := v.(int32)
		if !ok {
			return mismatch()
		}
		field.SetInt(int64(n))
	case schema.TypeLong:
		n, ok := v.(int64)
		if !ok {
			return mismatch()
		}
		field.SetInt(n)
	case schema.TypeByte:
		n, ok := v.(uint8)
		if !ok {
			return mismatch()
		}
		field.SetUint(uint64(n))
	case schema.TypeString:
		s, ok := v.(string)
		if !ok {
			return mismatch()
		}
		field.SetString(s)
	case schema.TypeDouble:
		f, ok := v.(float64)
		if !ok {
			return mismatch()
		}
		field.SetFloat(f)
	case schema.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		field.SetBool(b)
	case schema.TypeBytes:
		b, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		field.SetBytes(append([]byte(nil), b...))
	case schema.TypeTimestamp:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch()
		}
		field.Set(reflect.ValueOf(t))
	case schema.TypeEnum:
		m, ok := v.(enums.Member)
		if !ok {
			return mismatch()
		}
		if n, signed := m.Ordinal.Int64(); signed {
			field.SetInt(n)
		} else {
			u, _ := m.Ordinal.Uint64()
			field.SetUint(u)
		}
	default:
		return mismatch()
	}
	return nil
}

// fieldByIndex is reflect.Value.FieldByIndex without the panic on nil embedded pointers
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, fmt.Errorf("nil embedded pointer in %s", v.Type())
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || x >= v.NumField() {
			return reflect.Value{}, fmt.Errorf("field index %v does not match %s", index, v.Type())
		}
		v = v.Field(x)
	}
	return v, nil
}
