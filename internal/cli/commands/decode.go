package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/codec"
	"github.com/conduit-lang/docmap/internal/orm/diagnostics"
	"github.com/conduit-lang/docmap/internal/orm/mapping"
)

// NewDecodeCommand creates the decode command
func NewDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <model.yaml> <entity> <column> [file]",
		Short: "Decode a stored JSON document and print its canonical form",
		Long: `Decode one JSON document against the schema of an entity column and print
the document as docmap would write it back. Enum values stored as member
names are reported as legacy values.

The document is read from file, or from standard input when file is
omitted or "-".`,
		Example: `  # Decode a document from a file
  docmap decode model.yaml Order Document order.json

  # Decode a value pasted from psql
  echo '{"Status":"Shipped"}' | docmap decode model.yaml Order Document`,
		Args: cobra.RangeArgs(3, 4),
		RunE: runDecode,
	}
}

func runDecode(cmd *cobra.Command, args []string) error {
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

	var raw []byte
	if len(args) == 4 && args[3] != "-" {
		raw, err = os.ReadFile(args[3])
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	scope := diagnostics.NewScope(s.logger)
	canonical, err := canonicalize(codec.NewDecoder(scope), c, raw)
	scope.Close()
	if err != nil {
		ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{
			Level:   ui.ErrorLevelError,
			Context: "decode failed",
			Problem: err.Error(),
			HelpCommands: []string{
				fmt.Sprintf("See the expected properties: docmap inspect %s", s.modelPath),
			},
			NoColor: noColorFlag,
		})
		return fmt.Errorf("%s.%s: %w", e.Name, c.Name, errReported)
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.IndentJSON(canonical))
	if counts := scope.LegacyEnumCounts(); len(counts) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), ui.LegacyEnumWarning(counts, noColorFlag))
	}
	return nil
}

// canonicalize decodes a column value and encodes it again
func canonicalize(dec *codec.Decoder, c *mapping.Column, raw []byte) ([]byte, error) {
	if c.Collection() {
		items, err := dec.DecodeCollection(raw, c.Schema)
		if err != nil {
			return nil, err
		}
		return codec.EncodeCollection(items, c.Schema)
	}

	g, err := dec.Decode(raw, c.Schema)
	if err != nil {
		return nil, err
	}
	return codec.Encode(g, c.Schema)
}
