// Package graph provides the in-memory form of an owned entity graph stored in a JSON column.
//
// A Graph maps property names to values. Value types follow the property's schema:
//
//	int        int32
//	long       int64
//	byte       uint8
//	string     string
//	double     float64
//	bool       bool
//	enum       enums.Member
//	bytes      []byte
//	timestamp  time.Time
//	reference  Graph (nil when absent)
//	collection []Graph
//	array      []interface{} of the element type
//
// Nullable scalars hold nil when null. A graph is owned by the row that contains it
// and has no identity of its own.
package graph

import (
	"bytes"
	"fmt"
	"reflect"
	"time"

	"github.com/conduit-lang/docmap/internal/orm/enums"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Graph is an owned entity instance
type Graph map[string]interface{}

// New creates an empty graph
func New() Graph {
	return make(Graph)
}

// Reference returns the nested graph stored under name, or nil
func (g Graph) Reference(name string) Graph {
	ref, _ := g[name].(Graph)
	return ref
}

// Collection returns the owned collection stored under name, or nil
func (g Graph) Collection(name string) []Graph {
	items, _ := g[name].([]Graph)
	return items
}

// Clone returns a deep copy of the graph
func (g Graph) Clone() Graph {
	if g == nil {
		return nil
	}
	result := make(Graph, len(g))
	for k, v := range g {
		result[k] = cloneValue(v)
	}
	return result
}

// CloneCollection returns a deep copy of an owned collection
func CloneCollection(items []Graph) []Graph {
	if items == nil {
		return nil
	}
	result := make([]Graph, len(items))
	for i, item := range items {
		result[i] = item.Clone()
	}
	return result
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Graph:
		return val.Clone()
	case []Graph:
		return CloneCollection(val)
	case []interface{}:
		if val == nil {
			return val
		}
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case []byte:
		if val == nil {
			return val
		}
		return append([]byte(nil), val...)
	default:
		// scalars, enum members and time.Time are values
		return v
	}
}

// Get returns the value of property p, substituting the property's default when the key is absent
func (g Graph) Get(p *schema.PropertyNode) interface{} {
	if v, ok := g[p.Name]; ok && !isNil(v) {
		return v
	}
	return DefaultValue(p)
}

// isNil reports whether v is nil or a nil graph, sequence or byte slice
func isNil(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case Graph:
		return val == nil
	case []Graph:
		return val == nil
	case []interface{}:
		return val == nil
	case []byte:
		return val == nil
	default:
		return false
	}
}

// DefaultValue returns the value an absent property takes: nil for nullable scalars and references,
// empty sequences for collections and arrays, and the zero value of non-nullable scalars.
func DefaultValue(p *schema.PropertyNode) interface{} {
	switch p.Kind {
	case schema.KindReference:
		return nil
	case schema.KindCollection:
		return []Graph{}
	case schema.KindPrimitiveArray:
		return []interface{}{}
	}
	if p.Nullable {
		return nil
	}
	return ZeroScalar(p.Scalar, p.Enum)
}

// ZeroScalar returns the zero value of a scalar type. For enums it is the member with the
// zero ordinal, or a nameless member when the enum declares none.
func ZeroScalar(t schema.ScalarType, e *enums.Type) interface{} {
	switch t {
	case schema.TypeInt:
		return int32(0)
	case schema.TypeLong:
		return int64(0)
	case schema.TypeByte:
		return uint8(0)
	case schema.TypeString:
		return ""
	case schema.TypeDouble:
		return float64(0)
	case schema.TypeBool:
		return false
	case schema.TypeBytes:
		return []byte(nil)
	case schema.TypeTimestamp:
		return time.Time{}
	case schema.TypeEnum:
		var zero enums.Ordinal
		if e.Width.Signed() {
			zero = enums.Signed(e.Width, 0)
		} else {
			zero = enums.Unsigned(e.Width, 0)
		}
		if m, ok := e.ByOrdinal(zero); ok {
			return m
		}
		return enums.Member{Ordinal: zero}
	default:
		return nil
	}
}

// Normalize returns a copy of g shaped exactly like s: every property present, absent values
// replaced by their defaults, nil collections replaced by empty ones and unknown keys dropped.
// Decode always produces normalized graphs.
func Normalize(g Graph, s *schema.DocumentSchema) Graph {
	if g == nil {
		return nil
	}
	out := make(Graph, len(s.Properties))
	for _, p := range s.Properties {
		v := g.Get(p)
		switch p.Kind {
		case schema.KindReference:
			if ref, ok := v.(Graph); ok {
				v = Normalize(ref, p.Child)
			}
		case schema.KindCollection:
			items, _ := v.([]Graph)
			v = NormalizeCollection(items, p.Child)
		default:
			v = cloneValue(v)
		}
		out[p.Name] = v
	}
	return out
}

// NormalizeCollection normalizes every element of an owned collection. A nil collection becomes empty.
func NormalizeCollection(items []Graph, s *schema.DocumentSchema) []Graph {
	out := make([]Graph, 0, len(items))
	for _, item := range items {
		out = append(out, Normalize(item, s))
	}
	return out
}

// Equal reports whether a and b are structurally equal under s.
// Absent properties compare equal to their defaults; collections compare element-wise by position.
func Equal(a, b Graph, s *schema.DocumentSchema) bool {
	_, differs := FirstDifference(a, b, s)
	return !differs
}

// EqualCollection reports whether two owned collections are structurally equal under s
func EqualCollection(a, b []Graph, s *schema.DocumentSchema) bool {
	_, differs := firstCollectionDifference("$", a, b, s)
	return !differs
}

// FirstDifference returns the JSON path of the first property, in declaration order,
// where a and b differ
func FirstDifference(a, b Graph, s *schema.DocumentSchema) (path string, differs bool) {
	return firstDifference("$", a, b, s)
}

// FirstCollectionDifference is FirstDifference for root collections
func FirstCollectionDifference(a, b []Graph, s *schema.DocumentSchema) (path string, differs bool) {
	return firstCollectionDifference("$", a, b, s)
}

func firstDifference(prefix string, a, b Graph, s *schema.DocumentSchema) (string, bool) {
	if (a == nil) != (b == nil) {
		return prefix, true
	}
	if a == nil {
		return "", false
	}

	for _, p := range s.Properties {
		path := prefix + "." + p.JSONName
		va, vb := a.Get(p), b.Get(p)

		switch p.Kind {
		case schema.KindReference:
			ra, _ := va.(Graph)
			rb, _ := vb.(Graph)
			if diffPath, differs := firstDifference(path, ra, rb, p.Child); differs {
				return diffPath, true
			}
		case schema.KindCollection:
			ca, _ := va.([]Graph)
			cb, _ := vb.([]Graph)
			if diffPath, differs := firstCollectionDifference(path, ca, cb, p.Child); differs {
				return diffPath, true
			}
		case schema.KindPrimitiveArray:
			aa, _ := va.([]interface{})
			ab, _ := vb.([]interface{})
			if len(aa) != len(ab) {
				return path, true
			}
			for i := range aa {
				if !ScalarEqual(aa[i], ab[i]) {
					return fmt.Sprintf("%s[%d]", path, i), true
				}
			}
		default:
			if !ScalarEqual(va, vb) {
				return path, true
			}
		}
	}
	return "", false
}

func firstCollectionDifference(prefix string, a, b []Graph, s *schema.DocumentSchema) (string, bool) {
	if len(a) != len(b) {
		return prefix, true
	}
	for i := range a {
		if path, differs := firstDifference(fmt.Sprintf("%s[%d]", prefix, i), a[i], b[i], s); differs {
			return path, true
		}
	}
	return "", false
}

// ScalarEqual compares two scalar values of the same schema type.
// Values of different or uncomparable types are never equal.
func ScalarEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch va := a.(type) {
	case []byte:
		vb, ok := b.([]byte)
		return ok && bytes.Equal(va, vb)
	case time.Time:
		vb, ok := b.(time.Time)
		return ok && va.Equal(vb)
	default:
		ta := reflect.TypeOf(a)
		if ta != reflect.TypeOf(b) || !ta.Comparable() {
			return false
		}
		return a == b
	}
}
