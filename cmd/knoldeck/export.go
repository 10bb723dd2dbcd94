package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gosimple/slug"
	"github.com/spf13/cobra"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/parser"
)

var (
	exportOutput string
	exportJSON   bool
)

func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export [deck-id]",
		Short: "Write a deck as Q:/A: markdown, or all state as JSON",
		Long: "Writes the deck (default: the active deck) to <deck-name>.md, or to --output.\n" +
			"With --json the whole state document is written instead; --output - means stdout.",
		Args: cobra.MaximumNArgs(1),
		RunE: withEnv(runExportCmd),
	}
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, - for stdout")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "export the whole state document as JSON")
	return exportCmd
}

func runExportCmd(cmd *cobra.Command, args []string, e *env) error {
	if exportJSON {
		return writeOutput(cmd, exportOutput, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(e.app.Snapshot())
		})
	}

	deckID, err := deckArg(e, args)
	if err != nil {
		return err
	}
	cards, err := e.app.Cards(deckID)
	if err != nil {
		return err
	}
	var name string
	for _, d := range e.app.Decks() {
		if d.ID == deckID {
			name = d.Name
		}
	}

	pairs := make([]domain.Pair, 0, len(cards))
	for _, c := range cards {
		pairs = append(pairs, domain.Pair{Front: c.Front, Back: c.Back})
	}

	out := exportOutput
	if out == "" {
		base := slug.Make(name)
		if base == "" {
			base = deckID
		}
		out = base + ".md"
	}
	if err := writeOutput(cmd, out, func(w io.Writer) error { return parser.Format(w, pairs) }); err != nil {
		return err
	}
	if out != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d cards to %s\n", len(pairs), out)
	}
	return nil
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
