package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/store"
)

var schemaApplyFlag bool

// NewSchemaCommand creates the schema command
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <model.yaml>",
		Short: "Print or apply the DDL for a model",
		Long: `Generate the CREATE statements for every entity of a model using the
dialect of the configured database driver: jsonb columns for PostgreSQL,
TEXT columns for SQLite. Extensions listed in the model come first.

With --apply the statements run against the configured database in one
transaction. Existing tables are left untouched.`,
		Example: `  # Print PostgreSQL DDL
  docmap schema model.yaml

  # Print SQLite DDL
  DOCMAP_DATABASE_DRIVER=sqlite3 docmap schema model.yaml

  # Create missing tables
  docmap schema model.yaml --apply`,
		Args: cobra.ExactArgs(1),
		RunE: runSchema,
	}

	cmd.Flags().BoolVar(&schemaApplyFlag, "apply", false, "Run the statements against the configured database")

	return cmd
}

func runSchema(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd, args[0])
	if err != nil {
		return err
	}

	if schemaApplyFlag {
		return applySchema(context.Background(), cmd, s)
	}

	dialect, err := store.DialectFor(s.cfg.Database.Driver)
	if err != nil {
		return err
	}
	statements, err := store.New(nil, dialect, s.model, s.logger).CreateSchemaSQL()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		fmt.Fprintln(cmd.OutOrStdout(), stmt)
	}
	return nil
}

// applySchema creates the extensions and tables of the session's model in the configured database
func applySchema(ctx context.Context, cmd *cobra.Command, s *session) error {
	st, closeFn, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Schema applied (%d entities)", len(s.model.Entities())), noColorFlag)
	return nil
}
