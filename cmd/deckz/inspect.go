// File: cmd/deckz/inspect.go
// Brief: CLI command wiring and implementation for 'tree', 'deps', 'clean' and 'runs'.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/deckz/internal/catalog"
	"github.com/example/deckz/internal/deck"
	"github.com/example/deckz/internal/history"
)

func newTreeCommand(global *globalOptions) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "tree [TARGET...]",
		Short: "Print the parts, sections and inputs of each target",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := deck.NewOptions()
			opts.Debug = debug
			opts.Targets = args
			p, err := openDeck(cmd, global, global.Deck, *opts)
			if err != nil {
				return err
			}
			c, err := p.LoadCatalog()
			if err != nil {
				return err
			}
			return catalog.PrintTree(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Read targets-debug.yml")
	return cmd
}

func newDepsCommand(global *globalOptions) *cobra.Command {
	var (
		debug  bool
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "List content files used, missing and unused by the deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := deck.NewOptions()
			opts.Debug = debug
			opts.Strict = strict
			p, err := openDeck(cmd, global, global.Deck, *opts)
			if err != nil {
				return err
			}
			c, err := p.LoadCatalog()
			if err != nil {
				return err
			}
			deps, err := p.Resolver().Dependencies(c)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATE\tPATH")
			for _, f := range deps.Used {
				fmt.Fprintf(tw, "used\t%s\n", rel(p.Layout.Root, f))
			}
			for _, f := range deps.Unused {
				fmt.Fprintf(tw, "unused\t%s\n", rel(p.Layout.Root, f))
			}
			for _, r := range deps.Missing {
				fmt.Fprintf(tw, "missing\t%s\n", r)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(deps.Missing) > 0 {
				return fmt.Errorf("%d missing content references", len(deps.Missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Read targets-debug.yml")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a content reference exists at more than one level")
	return cmd
}

func newCleanCommand(global *globalOptions) *cobra.Command {
	var pdfs bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the build directory of the deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openDeck(cmd, global, global.Deck, *deck.NewOptions())
			if err != nil {
				return err
			}
			if err := p.Clean(pdfs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p.Layout.BuildDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pdfs, "pdf", false, "Also remove compiled PDFs")
	return cmd
}

func newRunsCommand(global *globalOptions) *cobra.Command {
	var (
		limit int
		cycle string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent build cycles of the deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openDeck(cmd, global, global.Deck, *deck.NewOptions())
			if err != nil {
				return err
			}
			store, err := history.Open(filepath.Join(p.Layout.BuildDir, history.FileName), true)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "No build cycles recorded for %s\n", p.Layout.Deck)
				return nil
			}
			if err != nil {
				return fmt.Errorf("open build history: %w", err)
			}
			defer store.Close()
			out := cmd.OutOrStdout()
			if cycle != "" {
				jobs, err := store.Jobs(cmd.Context(), cycle)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "JOB\tSTATUS\tDURATION\tERROR")
				for _, j := range jobs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.Name, j.Status, j.Duration, j.Error)
				}
				return tw.Flush()
			}
			cycles, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return history.PrintCycles(out, cycles)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of cycles to list")
	cmd.Flags().StringVar(&cycle, "cycle", "", "Show the jobs of one cycle")
	return cmd
}

func rel(root, path string) string {
	if r, err := filepath.Rel(root, path); err == nil {
		return r
	}
	return path
}
