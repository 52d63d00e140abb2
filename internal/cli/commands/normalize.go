package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
)

var normalizeDryRunFlag bool

// NewNormalizeCommand creates the normalize command
func NewNormalizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <model.yaml> <entity>",
		Short: "Rewrite stored documents in canonical form",
		Long: `Load every row of an entity, decode its JSON columns and write back the
columns whose canonical encoding differs from what is stored, such as enum
values stored as member names by older writers.

Documents that differ only in whitespace or member order are left alone.
All rewrites run in one transaction.`,
		Example: `  # Preview the rewrites
  docmap normalize model.yaml Order --dry-run

  # Rewrite legacy documents
  docmap normalize model.yaml Order`,
		Args: cobra.ExactArgs(2),
		RunE: runNormalize,
	}

	cmd.Flags().BoolVar(&normalizeDryRunFlag, "dry-run", false, "Show the rewrites without applying them")

	return cmd
}

func runNormalize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := loadSession(cmd, args[0])
	if err != nil {
		return err
	}
	e, err := s.entity(cmd, args[1])
	if err != nil {
		return err
	}

	st, closeFn, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	rewrites, err := st.Normalize(ctx, e.Name, !normalizeDryRunFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rewrites) == 0 {
		fmt.Fprint(out, ui.Info(fmt.Sprintf("All %s documents are canonical", e.Name), noColorFlag))
		return nil
	}

	if normalizeDryRunFlag {
		for _, rw := range rewrites {
			ui.WriteDocumentDiff(out, fmt.Sprintf("%s %v %s", e.Name, rw.Key, rw.Column), rw.Stored, rw.Canonical, noColorFlag)
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, ui.Info(fmt.Sprintf("%d documents would be rewritten (dry run)", len(rewrites)), noColorFlag))
		return nil
	}

	ui.WriteSuccess(out, fmt.Sprintf("Rewrote %d %s documents", len(rewrites), e.Name), noColorFlag)
	return nil
}
