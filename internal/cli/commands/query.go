package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/store"
)

// NewQueryCommand creates the query command
func NewQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <model.yaml> <entity> <column> <property>...",
		Short: "Select one scalar property out of a JSON column of every row",
		Long: `Project a scalar property out of a JSON column in SQL, cast to the
property's type, and print it for every row ordered by key. Properties
after the first follow owned references.

On PostgreSQL an enum value still stored as a member name fails the numeric
cast; run normalize first.`,
		Example: `  # Order status per row
  docmap query model.yaml Order Document Status

  # Nested reference
  docmap query model.yaml Order Document Shipping City`,
		Args: cobra.MinimumNArgs(4),
		RunE: runQuery,
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := loadSession(cmd, args[0])
	if err != nil {
		return err
	}
	e, err := s.entity(cmd, args[1])
	if err != nil {
		return err
	}
	c, err := s.column(cmd, e, args[2])
	if err != nil {
		return err
	}

	st, closeFn, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	values, err := st.SelectJSONScalar(ctx, e.Name, c.Name, args[3:]...)
	if err != nil {
		if store.IsInvalidTextRepresentation(err) {
			ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{
				Level:       ui.ErrorLevelError,
				Context:     "invalid stored value",
				Problem:     err.Error(),
				Consequence: "Some documents still store enum values as member names.",
				HelpCommands: []string{
					fmt.Sprintf("Rewrite them: docmap normalize %s %s", s.modelPath, e.Name),
				},
				NoColor: noColorFlag,
			})
			return fmt.Errorf("query failed: %w", errReported)
		}
		return fmt.Errorf("query failed: %w", err)
	}

	table := ui.NewTable(cmd.OutOrStdout(), []string{e.Key, "Value"}, &ui.TableOptions{NoColor: noColorFlag})
	for _, v := range values {
		value := "NULL"
		if v.Value != nil {
			value = fmt.Sprint(v.Value)
		}
		table.AddRow(fmt.Sprint(v.Key), value)
	}
	table.Render()
	return nil
}
