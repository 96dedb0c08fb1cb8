package main

import (
	"errors"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/deckz/internal/deck"
	"github.com/example/deckz/internal/paths"
	"github.com/example/deckz/internal/settings"
	"github.com/example/deckz/internal/ui"
)

// errJobsFailed is returned after the report has been printed.
var errJobsFailed = errors.New("jobs failed")

func loggerFrom(cmd *cobra.Command) logr.Logger {
	return logr.FromContextOrDiscard(cmd.Context())
}

// loadSettings reads settings.yml of the repository enclosing dir.
func loadSettings(global *globalOptions, dir string) (*paths.Layout, settings.Settings, error) {
	root, err := paths.ForRoot(dir, paths.Options{Root: global.Root})
	if err != nil {
		return nil, settings.Settings{}, err
	}
	s, err := settings.Load(root.Settings)
	if err != nil {
		return nil, settings.Settings{}, err
	}
	return root, s, nil
}

// openDeck builds the layout, settings and pipeline of the deck at dir.
func openDeck(cmd *cobra.Command, global *globalOptions, dir string, opts deck.Options) (*deck.Pipeline, error) {
	_, s, err := loadSettings(global, dir)
	if err != nil {
		return nil, err
	}
	l, err := paths.ForDeck(dir, paths.Options{Root: global.Root, UserConfigDir: s.UserConfigDir})
	if err != nil {
		return nil, err
	}
	p := deck.New(l, s, opts)
	p.Stdout, p.Stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
	p.Log = loggerFrom(cmd).WithName("deck")
	return p, nil
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// colorEnabled follows the terminal unless NO_COLOR disabled color globally.
func colorEnabled(w io.Writer) bool {
	return !color.NoColor && isTerminalWriter(w)
}

// newJobConsole draws live job progress on a stderr terminal while compiler
// output is silenced. It is inert otherwise.
func newJobConsole(cmd *cobra.Command, p *deck.Pipeline) *ui.JobConsole {
	errOut := cmd.ErrOrStderr()
	enabled := p.Options.Silent && isTerminalWriter(errOut)
	p.QuietJobs = enabled
	return ui.NewJobConsole(errOut, rel(p.Layout.Root, p.Layout.Deck), ui.ConsoleOptions{Enabled: enabled})
}
