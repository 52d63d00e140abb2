package schema

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/orm/enums"
)

type byteEnum uint8

var byteEnumType = enums.MustType("ByteEnum", enums.Uint8,
	enums.Member{Name: "Seattle", Ordinal: enums.Unsigned(enums.Uint8, 0)},
	enums.Member{Name: "Redmond", Ordinal: enums.Unsigned(enums.Uint8, 1)},
	enums.Member{Name: "Bellevue", Ordinal: enums.Unsigned(enums.Uint8, math.MaxUint8)},
)

func (byteEnum) EnumType() *enums.Type { return byteEnumType }

type wrongWidthEnum int64

func (wrongWidthEnum) EnumType() *enums.Type { return byteEnumType }

type leaf struct {
	LeafName string
	DoB      time.Time
}

type branch struct {
	BranchName string
	Nested     *leaf
}

type root struct {
	RootName          string
	Count             int32
	Total             int64
	Ratio             float64
	Flag              bool
	Small             uint8
	Maybe             *int32
	Kind              byteEnum `docmap:",string"`
	MaybeKind         *byteEnum
	Payload           []byte
	Tags              []string
	Collection        []branch `docmap:"Items"`
	OptionalReference *branch
	RequiredReference branch
	Ignored           string `docmap:"-"`
	internal          string
}

type withMap struct {
	Lookup map[string]string
}

type recursive struct {
	Name     string
	Children []recursive
}

type badEnum struct {
	Kind wrongWidthEnum
}

func TestResolve_Struct(t *testing.T) {
	s, err := Resolve(reflect.TypeOf(root{}))
	require.NoError(t, err)

	names := make([]string, 0, len(s.Properties))
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"RootName", "Count", "Total", "Ratio", "Flag", "Small", "Maybe", "Kind", "MaybeKind",
		"Payload", "Tags", "Collection", "OptionalReference", "RequiredReference",
	}, names)

	tests := []struct {
		name     string
		kind     Kind
		scalar   ScalarType
		nullable bool
	}{
		{"RootName", KindScalar, TypeString, false},
		{"Count", KindScalar, TypeInt, false},
		{"Total", KindScalar, TypeLong, false},
		{"Ratio", KindScalar, TypeDouble, false},
		{"Flag", KindScalar, TypeBool, false},
		{"Small", KindScalar, TypeByte, false},
		{"Maybe", KindScalar, TypeInt, true},
		{"Kind", KindScalar, TypeEnum, false},
		{"MaybeKind", KindScalar, TypeEnum, true},
		{"Payload", KindScalar, TypeBytes, true},
		{"Tags", KindPrimitiveArray, TypeString, true},
		{"Collection", KindCollection, 0, true},
		{"OptionalReference", KindReference, 0, true},
		{"RequiredReference", KindReference, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := s.Property(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.nullable, p.Nullable)
			if tt.kind == KindScalar || tt.kind == KindPrimitiveArray {
				assert.Equal(t, tt.scalar, p.Scalar)
			}
		})
	}

	kind, _ := s.Property("Kind")
	assert.Equal(t, EnumString, kind.EnumFormat)
	assert.Same(t, byteEnumType, kind.Enum)

	items, ok := s.JSONProperty("Items")
	require.True(t, ok)
	assert.Equal(t, "Collection", items.Name)
	assert.Equal(t, "branch", items.Child.Name)

	nested, ok := items.Child.Property("Nested")
	require.True(t, ok)
	dob, ok := nested.Child.Property("DoB")
	require.True(t, ok)
	assert.Equal(t, TypeTimestamp, dob.Scalar)
}

func TestResolve_CachedByType(t *testing.T) {
	first, err := Resolve(reflect.TypeOf(root{}))
	require.NoError(t, err)

	second, err := ResolveOf(&root{})
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestResolve_Concurrent(t *testing.T) {
	type concurrentRoot struct {
		Name  string
		Items []branch
	}

	var wg sync.WaitGroup
	results := make([]*DocumentSchema, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := Resolve(reflect.TypeOf(concurrentRoot{}))
			if err == nil {
				results[i] = s
			}
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		require.NotNil(t, s)
		assert.Same(t, results[0], s)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
	}{
		{"map field", reflect.TypeOf(withMap{})},
		{"recursive type", reflect.TypeOf(recursive{})},
		{"enum width mismatch", reflect.TypeOf(badEnum{})},
		{"not a struct", reflect.TypeOf(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.typ)
			require.Error(t, err)

			var schemaErr *SchemaError
			assert.True(t, errors.As(err, &schemaErr))
			assert.True(t, errors.Is(err, ErrUnmappable))
		})
	}
}

func TestBuilder(t *testing.T) {
	leafSchema := NewBuilder("Leaf").
		Scalar("LeafName", TypeString).
		MustBuild()

	s, err := NewBuilder("Root").
		Scalar("Name", TypeString).
		NullableScalar("NullableScalar", TypeInt).JSONName("nullable_scalar").
		Enum("Kind", byteEnumType, false, EnumNumeric).
		Reference("Leaf", leafSchema, true).
		Collection("Leaves", leafSchema.Clone()).
		PrimitiveArray("Numbers", TypeInt).
		Build()
	require.NoError(t, err)

	p, ok := s.JSONProperty("nullable_scalar")
	require.True(t, ok)
	assert.Equal(t, "NullableScalar", p.Name)
	assert.Equal(t, "int?", p.String())

	kind, _ := s.Property("Kind")
	assert.Equal(t, "enum(ByteEnum)!", kind.String())

	leaves, _ := s.Property("Leaves")
	assert.Equal(t, "collection<Leaf>?", leaves.String())
}

func TestBuilder_Errors(t *testing.T) {
	_, err := NewBuilder("Dup").
		Scalar("A", TypeString).
		Scalar("A", TypeInt).
		Build()
	assert.Error(t, err)

	_, err = NewBuilder("EnumWithoutType").
		Add(&PropertyNode{Name: "Kind", Kind: KindScalar, Scalar: TypeEnum}).
		Build()
	assert.True(t, errors.Is(err, ErrUnmappable))

	_, err = NewBuilder("JSONClash").
		Scalar("A", TypeString).JSONName("x").
		Scalar("B", TypeString).JSONName("x").
		Build()
	assert.Error(t, err)

	_, err = NewBuilder("ReferenceWithoutChild").
		Reference("Child", nil, true).
		Build()
	assert.Error(t, err)
}

func TestValidate_Cycle(t *testing.T) {
	s := NewBuilder("Node").Scalar("Name", TypeString).MustBuild()
	s.Properties = append(s.Properties, &PropertyNode{Name: "Self", JSONName: "Self", Kind: KindReference, Child: s})

	err := Validate(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tree")
}

func TestClone_IsIndependent(t *testing.T) {
	s, err := Resolve(reflect.TypeOf(root{}))
	require.NoError(t, err)

	c := s.Clone()
	p, _ := c.Property("RootName")
	p.JSONName = "root_name"
	require.NoError(t, c.Reindex())

	orig, _ := s.Property("RootName")
	assert.Equal(t, "RootName", orig.JSONName)
	_, ok := c.JSONProperty("root_name")
	assert.True(t, ok)
}

func TestWalk(t *testing.T) {
	s, err := Resolve(reflect.TypeOf(branch{}))
	require.NoError(t, err)

	var paths []string
	err = s.Walk(func(path string, p *PropertyNode) error {
		paths = append(paths, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"$.BranchName", "$.Nested", "$.Nested.LeafName", "$.Nested.DoB"}, paths)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	s := NewBuilder("Leaf").Scalar("LeafName", TypeString).MustBuild()
	require.NoError(t, registry.Register(s))
	assert.Error(t, registry.Register(s))

	require.NoError(t, registry.RegisterEnum(byteEnumType))
	assert.Error(t, registry.RegisterEnum(byteEnumType))

	got, ok := registry.Get("Leaf")
	require.True(t, ok)
	assert.Same(t, s, got)

	e, ok := registry.Enum("ByteEnum")
	require.True(t, ok)
	assert.Same(t, byteEnumType, e)

	assert.Equal(t, []string{"Leaf"}, registry.List())
	assert.Equal(t, 1, registry.Count())
}
