// File: cmd/deckz/watch.go
// Brief: CLI command wiring and implementation for 'watch'.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/deckz/internal/build"
	"github.com/example/deckz/internal/deck"
	"github.com/example/deckz/internal/watch"
)

func newWatchCommand(global *globalOptions) *cobra.Command {
	opts := deck.NewOptions()
	opts.NoHandout = true
	var (
		noDebug   bool
		noInitial bool
		debounce  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch [TARGET...]",
		Short: "Rebuild affected targets whenever deck or shared files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Debug = !noDebug
			opts.Targets = args
			p, err := openDeck(cmd, global, global.Deck, *opts)
			if err != nil {
				return err
			}
			if debounce <= 0 {
				debounce = time.Duration(p.Settings.Watch.Debounce)
			}
			return runWatch(cmd, p, debounce, p.Settings.InitialBuild() && !noInitial)
		},
	}
	opts.BindFlags(cmd.Flags())
	cmd.Flags().BoolVar(&noDebug, "no-debug", false, "Watch targets.yml instead of targets-debug.yml")
	cmd.Flags().BoolVar(&noInitial, "no-initial", false, "Wait for the first change before building")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before a rebuild (0 uses settings.yml)")
	return cmd
}

func runWatch(cmd *cobra.Command, p *deck.Pipeline, debounce time.Duration, initial bool) error {
	log := loggerFrom(cmd).WithName("watch")
	out := cmd.OutOrStdout()
	src, err := watch.NewFSSource(p.Settings.Watch.Ignore, log.WithName("fsnotify"))
	if err != nil {
		return err
	}
	if err := src.SetRoots(p.WatchRoots()); err != nil {
		return err
	}

	console := newJobConsole(cmd, p)
	p.Progress = console
	p.SkipDirtyCheck = true
	ctrl := &watch.Controller{
		Events:   src.Events(),
		Debounce: debounce,
		Initial:  initial,
		Log:      log,
		Build: func(ctx context.Context, changes watch.ChangeSet) error {
			started := time.Now()
			var (
				report *build.Report
				err    error
			)
			if len(changes) == 0 {
				report, err = p.Run(ctx, nil)
			} else {
				report, err = p.Rebuild(ctx, changes.Paths())
			}
			console.Done()
			if err != nil {
				return err
			}
			if err := build.PrintReport(out, report, colorEnabled(out)); err != nil {
				return err
			}
			if err := p.Record(ctx, "watch", started, report); err != nil {
				log.Error(err, "record build history")
			}
			// New content directories may have appeared with the catalog.
			if err := src.SetRoots(p.WatchRoots()); err != nil {
				return err
			}
			return report.Err()
		},
		OnState: func(s watch.State) {
			if s == watch.Idle {
				fmt.Fprintf(out, "Watching %s for changes (Ctrl-C to stop)\n", p.Layout.Deck)
			}
		},
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return src.Run(ctx) })
	g.Go(func() error { return ctrl.Run(ctx) })
	return g.Wait()
}
