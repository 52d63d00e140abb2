package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/mapping"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <model.yaml>",
		Short: "Show the entities, JSON columns and document properties of a model",
		Long: `Load a model definition file, apply the configured conventions and print
every entity with its table, key and JSON columns, followed by the property
tree of each column with JSON paths and types.

Types use explicit nullability: string! is required, string? is nullable.`,
		Example: `  # Inspect a model
  docmap inspect model.yaml

  # Inspect with snake_case JSON member names
  DOCMAP_JSON_NAMING=snake_case docmap inspect model.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, e := range s.model.Entities() {
		if i > 0 {
			fmt.Fprintln(out)
		}
		writeEntity(cmd, e)
	}

	if names := s.model.EnumNames(); len(names) > 0 {
		fmt.Fprintln(out)
		ui.Header(out, "Enums", noColorFlag)
		table := ui.NewTable(out, []string{"Enum", "Width", "Members"}, &ui.TableOptions{NoColor: noColorFlag})
		for _, name := range names {
			t, _ := s.model.Enum(name)
			members := make([]string, len(t.Members))
			for i, m := range t.Members {
				members[i] = fmt.Sprintf("%s=%s", m.Name, m.Ordinal)
			}
			table.AddRow(t.Name, t.Width.String(), strings.Join(members, ", "))
		}
		table.Render()
	}
	return nil
}

func writeEntity(cmd *cobra.Command, e *mapping.Entity) {
	out := cmd.OutOrStdout()

	ui.Header(out, e.Name, noColorFlag)
	kv := ui.NewKeyValueTable(out, noColorFlag)
	kv.AddRow("Table", e.Table)
	kv.AddRow("Key", fmt.Sprintf("%s (%s)", e.Key, e.KeyType))
	kv.Render()
	fmt.Fprintln(out)

	table := ui.NewTable(out, []string{"Column", "SQL Column", "Owns", "Path", "Type"}, &ui.TableOptions{NoColor: noColorFlag})
	for _, c := range e.Columns {
		table.AddRow(c.Name, c.Column, c.Kind.String(), rootPath(c), rootType(c))
		_ = c.Schema.Walk(func(path string, p *schema.PropertyNode) error {
			if c.Collection() {
				path = "$[*]" + strings.TrimPrefix(path, "$")
			}
			table.AddRow("", "", "", path, p.String())
			return nil
		})
	}
	table.Render()
}

func rootPath(c *mapping.Column) string {
	if c.Collection() {
		return "$[*]"
	}
	return "$"
}

func rootType(c *mapping.Column) string {
	if c.Collection() {
		return fmt.Sprintf("collection<%s>", c.Schema.Name)
	}
	if c.Required {
		return fmt.Sprintf("reference<%s>!", c.Schema.Name)
	}
	return fmt.Sprintf("reference<%s>?", c.Schema.Name)
}
