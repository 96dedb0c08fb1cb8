// File: cmd/deckz/run.go
// Brief: CLI command wiring and implementation for 'run' and 'debug'.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/deckz/internal/build"
	"github.com/example/deckz/internal/deck"
	"github.com/example/deckz/internal/paths"
)

func newRunCommand(global *globalOptions) *cobra.Command {
	opts := deck.NewOptions()
	return newBuildCommand(global, opts, "run [TARGET...]", "Build targets of the deck", "run")
}

func newDebugCommand(global *globalOptions) *cobra.Command {
	opts := deck.NewOptions()
	opts.Debug = true
	opts.NoHandout = true
	return newBuildCommand(global, opts, "debug [TARGET...]", "Build targets of targets-debug.yml, presentation only by default", "debug")
}

func newBuildCommand(global *globalOptions, opts *deck.Options, use, short, trigger string) *cobra.Command {
	var verbose, all bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				opts.Silent = false
			}
			opts.Targets = args
			decks := []string{global.Deck}
			if all {
				found, err := discover(global)
				if err != nil {
					return err
				}
				decks = found
			}
			return buildDecks(cmd, global, *opts, decks, trigger, all)
		},
	}
	opts.BindFlags(cmd.Flags())
	cmd.Flags().BoolVar(&verbose, "verbose-compiler", false, "Stream compiler output (same as --silent=false)")
	cmd.Flags().BoolVar(&all, "all", false, "Build every deck of the repository")
	return cmd
}

func discover(global *globalOptions) ([]string, error) {
	root := global.Root
	if root == "" {
		r, err := paths.FindRoot(global.Deck)
		if err != nil {
			return nil, err
		}
		root = r
	}
	decks, err := deck.DiscoverDecks(root)
	if err != nil {
		return nil, err
	}
	if len(decks) == 0 {
		return nil, fmt.Errorf("no %s found under %s", paths.TargetsFile, root)
	}
	return decks, nil
}

// buildDecks runs one cycle per deck. With keepGoing a deck whose shared
// phase fails is reported and skipped.
func buildDecks(cmd *cobra.Command, global *globalOptions, opts deck.Options, decks []string, trigger string, keepGoing bool) error {
	ctx := cmd.Context()
	log := loggerFrom(cmd)
	out := cmd.OutOrStdout()
	failed := false
	for _, dir := range decks {
		started := time.Now()
		p, err := openDeck(cmd, global, dir, opts)
		if err != nil {
			if !keepGoing {
				return err
			}
			log.Error(err, "skipping deck", "deck", dir)
			failed = true
			continue
		}
		console := newJobConsole(cmd, p)
		p.Progress = console
		report, err := p.Run(ctx, nil)
		console.Done()
		if err != nil {
			if !keepGoing {
				return err
			}
			log.Error(err, "deck failed", "deck", dir)
			failed = true
			continue
		}
		if len(decks) > 1 {
			fmt.Fprintf(out, "\n%s\n", p.Layout.Deck)
		}
		if err := build.PrintReport(out, report, colorEnabled(out)); err != nil {
			return err
		}
		if err := p.Record(ctx, trigger, started, report); err != nil {
			log.Error(err, "record build history")
		}
		if !report.OK() {
			failed = true
		}
	}
	if failed || ctx.Err() != nil {
		return errJobsFailed
	}
	return nil
}
