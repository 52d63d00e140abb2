package mapping

import (
	"fmt"

	"github.com/conduit-lang/docmap/internal/orm/schema"
	strutil "github.com/conduit-lang/docmap/internal/util/strings"
)

// Built-in convention names, in the order DefaultConventionSet applies them
const (
	TableNamingConventionName = "table_naming"
	JSONNamingConventionName  = "json_naming"
	EnumFormatConventionName  = "enum_format"
	ValidationConventionName  = "validation"
)

// NamingPolicy controls how JSON member names are derived from property names
type NamingPolicy int

const (
	// NamingExact keeps property names as JSON member names
	NamingExact NamingPolicy = iota
	// NamingSnakeCase converts property names to snake_case
	NamingSnakeCase
)

// String returns the configuration spelling of the policy
func (p NamingPolicy) String() string {
	switch p {
	case NamingExact:
		return "exact"
	case NamingSnakeCase:
		return "snake_case"
	default:
		return "unknown"
	}
}

// ParseNamingPolicy parses "exact" or "snake_case"
func ParseNamingPolicy(s string) (NamingPolicy, error) {
	switch s {
	case "exact", "":
		return NamingExact, nil
	case "snake_case":
		return NamingSnakeCase, nil
	default:
		return 0, fmt.Errorf("unknown JSON naming policy %q (expected exact or snake_case)", s)
	}
}

// Options parameterize the built-in conventions
type Options struct {
	// EnumFormat is applied to enum properties with no explicit representation
	EnumFormat schema.EnumFormat
	Naming     NamingPolicy
	KeyColumn  string
	KeyType    schema.ScalarType
}

// DefaultOptions returns numeric enums, exact JSON names and a long "id" key
func DefaultOptions() Options {
	return Options{
		EnumFormat: schema.EnumNumeric,
		Naming:     NamingExact,
		KeyColumn:  "id",
		KeyType:    schema.TypeLong,
	}
}

// Convention is one model-finalizing step
type Convention struct {
	Name  string
	Apply func(m *Model) error
}

// ConventionSet holds the ordered model-finalizing pipeline
type ConventionSet struct {
	ModelFinalizing []Convention
}

// Plugin modifies a convention set before a model is built
type Plugin interface {
	ModifyConventions(cs *ConventionSet) *ConventionSet
}

// PluginFunc adapts a function to the Plugin interface
type PluginFunc func(cs *ConventionSet) *ConventionSet

// ModifyConventions calls f(cs)
func (f PluginFunc) ModifyConventions(cs *ConventionSet) *ConventionSet {
	return f(cs)
}

// DefaultConventionSet returns the built-in pipeline: table naming, JSON naming, enum format, validation
func DefaultConventionSet(opts Options) *ConventionSet {
	return &ConventionSet{
		ModelFinalizing: []Convention{
			TableNamingConvention(opts),
			JSONNamingConvention(opts.Naming),
			EnumFormatConvention(opts.EnumFormat),
			ValidationConvention(),
		},
	}
}

// WithPlugins applies plugins in order and returns the resulting set
func (cs *ConventionSet) WithPlugins(plugins ...Plugin) *ConventionSet {
	result := cs
	for _, p := range plugins {
		result = p.ModifyConventions(result)
	}
	return result
}

// Add appends a convention to the end of the pipeline
func (cs *ConventionSet) Add(c Convention) {
	cs.ModelFinalizing = append(cs.ModelFinalizing, c)
}

// InsertBefore inserts c before the named convention, or appends it when the name is not found
func (cs *ConventionSet) InsertBefore(name string, c Convention) {
	for i, existing := range cs.ModelFinalizing {
		if existing.Name == name {
			cs.ModelFinalizing = append(cs.ModelFinalizing[:i], append([]Convention{c}, cs.ModelFinalizing[i:]...)...)
			return
		}
	}
	cs.Add(c)
}

// Remove drops the named convention and reports whether it was present
func (cs *ConventionSet) Remove(name string) bool {
	for i, existing := range cs.ModelFinalizing {
		if existing.Name == name {
			cs.ModelFinalizing = append(cs.ModelFinalizing[:i], cs.ModelFinalizing[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the convention names in pipeline order
func (cs *ConventionSet) Names() []string {
	names := make([]string, len(cs.ModelFinalizing))
	for i, c := range cs.ModelFinalizing {
		names[i] = c.Name
	}
	return names
}

// TableNamingConvention fills in table, key and column names that were not configured explicitly
func TableNamingConvention(opts Options) Convention {
	return Convention{
		Name: TableNamingConventionName,
		Apply: func(m *Model) error {
			for _, e := range m.Entities() {
				if e.Table == "" {
					e.Table = strutil.TableName(e.Name)
				}
				if e.Key == "" {
					e.Key = opts.KeyColumn
					e.KeyType = opts.KeyType
				}
				for _, c := range e.Columns {
					if c.Column == "" {
						c.Column = strutil.ToSnakeCase(c.Name)
					}
				}
			}
			return nil
		},
	}
}

// JSONNamingConvention renames JSON members under the snake_case policy.
// Members renamed explicitly, through a struct tag or the schema builder, are left alone.
func JSONNamingConvention(policy NamingPolicy) Convention {
	return Convention{
		Name: JSONNamingConventionName,
		Apply: func(m *Model) error {
			if policy == NamingExact {
				return nil
			}
			return m.Walk(func(e *Entity, c *Column) error {
				return eachSchema(c.Schema, func(s *schema.DocumentSchema) error {
					for _, p := range s.Properties {
						if p.JSONName == p.Name {
							p.JSONName = strutil.ToSnakeCase(p.Name)
						}
					}
					return s.Reindex()
				})
			})
		},
	}
}

// EnumFormatConvention applies the default representation to enum properties that have none
// and registers every enum type on the model. Two different enum types may not share a name.
func EnumFormatConvention(format schema.EnumFormat) Convention {
	return Convention{
		Name: EnumFormatConventionName,
		Apply: func(m *Model) error {
			return m.WalkProperties(func(e *Entity, c *Column, path string, p *schema.PropertyNode) error {
				if !p.IsEnum() {
					return nil
				}
				if p.EnumFormat == schema.EnumFormatUnset {
					p.EnumFormat = format
				}
				if existing, ok := m.enums[p.Enum.Name]; ok && existing != p.Enum {
					return fmt.Errorf("%s.%s %s: enum name %s is used by two different enum types", e.Name, c.Name, path, p.Enum.Name)
				}
				m.enums[p.Enum.Name] = p.Enum
				return nil
			})
		},
	}
}

// ValidationConvention checks the finished model: tables and keys are set and unique,
// column names are unique per table and every document schema is a valid tree
func ValidationConvention() Convention {
	return Convention{
		Name: ValidationConventionName,
		Apply: func(m *Model) error {
			tables := make(map[string]string)
			for _, e := range m.Entities() {
				if e.Table == "" {
					return fmt.Errorf("entity %s has no table", e.Name)
				}
				if other, ok := tables[e.Table]; ok {
					return fmt.Errorf("entities %s and %s both map to table %s", other, e.Name, e.Table)
				}
				tables[e.Table] = e.Name

				if e.Key == "" {
					return fmt.Errorf("entity %s has no key column", e.Name)
				}
				switch e.KeyType {
				case schema.TypeInt, schema.TypeLong, schema.TypeString:
				default:
					return fmt.Errorf("entity %s: key type %s is not supported", e.Name, e.KeyType)
				}

				columns := map[string]bool{e.Key: true}
				for _, c := range e.Columns {
					if c.Column == "" {
						return fmt.Errorf("entity %s column %s has no SQL column name", e.Name, c.Name)
					}
					if columns[c.Column] {
						return fmt.Errorf("entity %s: SQL column %s is mapped twice", e.Name, c.Column)
					}
					columns[c.Column] = true
					if c.Required && c.Kind == OwnsMany {
						return fmt.Errorf("entity %s column %s: owned collections cannot be required", e.Name, c.Name)
					}
					if err := schema.Validate(c.Schema); err != nil {
						return fmt.Errorf("entity %s column %s: %w", e.Name, c.Name, err)
					}
				}
				if err := e.reindex(); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// ExtensionPlugin adds a convention recording a database extension the model needs,
// such as a spatial or full-text extension backing some column type
type ExtensionPlugin struct {
	Extension string
}

// ModifyConventions appends the extension-adding convention
func (p ExtensionPlugin) ModifyConventions(cs *ConventionSet) *ConventionSet {
	cs.Add(Convention{
		Name: "extension:" + p.Extension,
		Apply: func(m *Model) error {
			m.AddExtension(p.Extension)
			return nil
		},
	})
	return cs
}

func eachSchema(s *schema.DocumentSchema, fn func(*schema.DocumentSchema) error) error {
	if err := fn(s); err != nil {
		return err
	}
	for _, p := range s.Properties {
		if p.Child != nil {
			if err := eachSchema(p.Child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
