package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/docmap/internal/orm/enums"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Definitions is a declarative model read from YAML:
//
//	enums:
//	  - name: Color
//	    width: int32
//	    members:
//	      - {name: Red, value: 0}
//	documents:
//	  - name: Address
//	    properties:
//	      - {name: Street, type: string}
//	      - {name: Color, type: enum, enum: Color, nullable: true}
//	      - {name: Tags, type: array, of: string}
//	      - {name: Previous, type: collection, document: Address}
//	entities:
//	  - name: Customer
//	    columns:
//	      - {name: Address, owns: one, document: Address, required: true}
//	extensions: [postgis]
//
// Enum values are read as strings so 64-bit extremes survive parsing.
type Definitions struct {
	Extensions []string             `yaml:"extensions"`
	Enums      []EnumDefinition     `yaml:"enums"`
	Documents  []DocumentDefinition `yaml:"documents"`
	Entities   []EntityDefinition   `yaml:"entities"`

	registry  *schema.Registry
	documents map[string]*DocumentDefinition
}

// EnumDefinition declares an enum type
type EnumDefinition struct {
	Name    string             `yaml:"name"`
	Width   string             `yaml:"width"`
	Members []MemberDefinition `yaml:"members"`
}

// MemberDefinition declares one enum member
type MemberDefinition struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// DocumentDefinition declares an owned entity type
type DocumentDefinition struct {
	Name       string               `yaml:"name"`
	Properties []PropertyDefinition `yaml:"properties"`
}

// PropertyDefinition declares one property. Type is a scalar type, "reference", "collection" or "array".
type PropertyDefinition struct {
	Name     string `yaml:"name"`
	JSON     string `yaml:"json,omitempty"`
	Type     string `yaml:"type"`
	Of       string `yaml:"of,omitempty"`
	Enum     string `yaml:"enum,omitempty"`
	Document string `yaml:"document,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Format   string `yaml:"format,omitempty"`
}

// EntityDefinition declares a table and its JSON columns
type EntityDefinition struct {
	Name    string             `yaml:"name"`
	Table   string             `yaml:"table,omitempty"`
	Key     string             `yaml:"key,omitempty"`
	KeyType string             `yaml:"key_type,omitempty"`
	Columns []ColumnDefinition `yaml:"columns"`
}

// ColumnDefinition declares one JSON column; Owns is "one" or "many"
type ColumnDefinition struct {
	Name     string `yaml:"name"`
	Column   string `yaml:"column,omitempty"`
	Owns     string `yaml:"owns"`
	Document string `yaml:"document"`
	Required bool   `yaml:"required,omitempty"`
}

// LoadDefinitions reads definitions from a YAML file
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	defs, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseDefinitions parses YAML definitions. Unknown keys are rejected.
func ParseDefinitions(data []byte) (*Definitions, error) {
	var defs Definitions
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse model definitions: %w", err)
	}
	if err := defs.index(); err != nil {
		return nil, err
	}
	return &defs, nil
}

func (d *Definitions) index() error {
	d.registry = schema.NewRegistry()
	for _, ed := range d.Enums {
		t, err := ed.build()
		if err != nil {
			return err
		}
		if err := d.registry.RegisterEnum(t); err != nil {
			return err
		}
	}

	d.documents = make(map[string]*DocumentDefinition, len(d.Documents))
	for i := range d.Documents {
		doc := &d.Documents[i]
		if doc.Name == "" {
			return errors.New("document definition without a name")
		}
		if _, exists := d.documents[doc.Name]; exists {
			return fmt.Errorf("document %s defined twice", doc.Name)
		}
		d.documents[doc.Name] = doc
	}

	// Every document is validated up front, including those no entity uses
	for _, doc := range d.Documents {
		s, err := d.Document(doc.Name)
		if err != nil {
			return err
		}
		if err := d.registry.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the validated document schemas and enum types of the definitions.
// Registered schemas are for lookup only; Document builds the trees handed to a model.
func (d *Definitions) Registry() *schema.Registry {
	return d.registry
}

func (ed EnumDefinition) build() (*enums.Type, error) {
	width, err := enums.ParseWidth(ed.Width)
	if err != nil {
		return nil, fmt.Errorf("enum %s: %w", ed.Name, err)
	}
	members := make([]enums.Member, 0, len(ed.Members))
	for _, md := range ed.Members {
		o, err := enums.ParseOrdinal(width, md.Value)
		if err != nil {
			return nil, fmt.Errorf("enum %s member %s: %w", ed.Name, md.Name, err)
		}
		members = append(members, enums.Member{Name: md.Name, Ordinal: o})
	}
	return enums.NewType(ed.Name, width, members...)
}

// EnumType returns a defined enum type
func (d *Definitions) EnumType(name string) (*enums.Type, bool) {
	return d.registry.Enum(name)
}

// Document builds a fresh schema tree for the named document.
// Documents referring to themselves, directly or not, are rejected.
func (d *Definitions) Document(name string) (*schema.DocumentSchema, error) {
	return d.buildDocument(name, make(map[string]bool))
}

func (d *Definitions) buildDocument(name string, inProgress map[string]bool) (*schema.DocumentSchema, error) {
	doc, ok := d.documents[name]
	if !ok {
		return nil, fmt.Errorf("document %s is not defined", name)
	}
	if inProgress[name] {
		return nil, &schema.SchemaError{Type: name, Reason: "document contains itself; document schemas must form a tree"}
	}
	inProgress[name] = true
	defer delete(inProgress, name)

	b := schema.NewBuilder(doc.Name)
	for _, pd := range doc.Properties {
		p, err := d.buildProperty(doc.Name, pd, inProgress)
		if err != nil {
			return nil, err
		}
		b.Add(p)
	}
	return b.Build()
}

func (d *Definitions) buildProperty(owner string, pd PropertyDefinition, inProgress map[string]bool) (*schema.PropertyNode, error) {
	fail := func(format string, args ...interface{}) error {
		return &schema.SchemaError{Type: owner, Property: pd.Name, Reason: fmt.Sprintf(format, args...)}
	}

	p := &schema.PropertyNode{Name: pd.Name, JSONName: pd.JSON, Nullable: pd.Nullable}
	format, err := schema.ParseEnumFormat(pd.Format)
	if err != nil {
		return nil, fail("%v", err)
	}
	p.EnumFormat = format

	switch pd.Type {
	case "reference", "collection":
		child, err := d.buildDocument(pd.Document, inProgress)
		if err != nil {
			return nil, err
		}
		p.Child = child
		p.Kind = schema.KindReference
		if pd.Type == "collection" {
			p.Kind = schema.KindCollection
			p.Nullable = true
		}
		return p, nil

	case "array":
		if err := d.resolveScalar(p, pd.Of, pd.Enum); err != nil {
			return nil, fail("%v", err)
		}
		p.Kind = schema.KindPrimitiveArray
		p.Nullable = true
		return p, nil

	default:
		if err := d.resolveScalar(p, pd.Type, pd.Enum); err != nil {
			return nil, fail("%v", err)
		}
		p.Kind = schema.KindScalar
		if p.Scalar == schema.TypeBytes {
			p.Nullable = true
		}
		return p, nil
	}
}

func (d *Definitions) resolveScalar(p *schema.PropertyNode, typ, enumName string) error {
	scalar, err := schema.ParseScalarType(typ)
	if err != nil {
		return err
	}
	p.Scalar = scalar
	if scalar != schema.TypeEnum {
		if enumName != "" {
			return fmt.Errorf("%s property cannot name an enum", scalar)
		}
		return nil
	}
	t, ok := d.registry.Enum(enumName)
	if !ok {
		return fmt.Errorf("enum %q is not defined", enumName)
	}
	p.Enum = t
	return nil
}

// Declare adds every defined entity to the model builder
func (d *Definitions) Declare(b *ModelBuilder) error {
	for _, ed := range d.Entities {
		eb := b.Entity(ed.Name)
		if ed.Table != "" {
			eb.ToTable(ed.Table)
		}
		if ed.Key != "" || ed.KeyType != "" {
			keyType := schema.TypeLong
			if ed.KeyType != "" {
				t, err := schema.ParseScalarType(ed.KeyType)
				if err != nil {
					return fmt.Errorf("entity %s: %w", ed.Name, err)
				}
				keyType = t
			}
			key := ed.Key
			if key == "" {
				key = "id"
			}
			eb.HasKey(key, keyType)
		}

		for _, cd := range ed.Columns {
			s, err := d.Document(cd.Document)
			if err != nil {
				return fmt.Errorf("entity %s column %s: %w", ed.Name, cd.Name, err)
			}

			var cb *ColumnBuilder
			switch cd.Owns {
			case "one":
				cb = eb.OwnsOne(cd.Name, s)
			case "many":
				cb = eb.OwnsMany(cd.Name, s)
			default:
				return fmt.Errorf("entity %s column %s: owns must be one or many, got %q", ed.Name, cd.Name, cd.Owns)
			}
			if cd.Column != "" {
				cb.ToColumn(cd.Column)
			}
			if cd.Required {
				cb.Required()
			}
		}
	}
	return nil
}

// Plugins returns one ExtensionPlugin per declared database extension
func (d *Definitions) Plugins() []Plugin {
	plugins := make([]Plugin, 0, len(d.Extensions))
	for _, ext := range d.Extensions {
		plugins = append(plugins, ExtensionPlugin{Extension: ext})
	}
	return plugins
}

// Build declares the definitions on a new builder and finalizes the model.
// The declared extensions are added to conventions, or to the default set when conventions is nil.
func (d *Definitions) Build(conventions *ConventionSet, logger *zap.Logger) (*Model, error) {
	if conventions == nil {
		conventions = DefaultConventionSet(DefaultOptions())
	}
	b := NewModelBuilder(conventions.WithPlugins(d.Plugins()...), logger)
	if err := d.Declare(b); err != nil {
		return nil, err
	}
	return b.Finalize()
}
