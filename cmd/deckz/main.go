// main.go bootstraps deckz: it builds the root Cobra command, binds flags to
// DECKZ_* variables, and executes with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/deckz/internal/catalog"
	"github.com/example/deckz/internal/compiler"
	"github.com/example/deckz/internal/config"
	"github.com/example/deckz/internal/logging"
	"github.com/example/deckz/internal/paths"
	"github.com/example/deckz/internal/resolve"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

// globalOptions are shared by every subcommand.
type globalOptions struct {
	LogLevel string
	Deck     string
	Root     string
}

func newRootCommand() *cobra.Command {
	global := &globalOptions{LogLevel: "info", Deck: "."}
	cmd := &cobra.Command{
		Use:           "deckz",
		Short:         "Build LaTeX decks from shared content",
		Long:          "deckz merges layered configuration, resolves each deck target against deck, company and shared content, and compiles every target and variant in parallel.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(global.LogLevel)
			if err != nil {
				return err
			}
			cmd.SetContext(logr.NewContext(cmd.Context(), logger))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&global.LogLevel, "log-level", global.LogLevel, "Log level for deckz output (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&global.Deck, "deck", "d", global.Deck, "Deck directory (<root>/<company>/<deck>)")
	cmd.PersistentFlags().StringVar(&global.Root, "root", "", "Repository root; discovered from the deck directory when empty")

	runCmd := newRunCommand(global)
	debugCmd := newDebugCommand(global)
	watchCmd := newWatchCommand(global)
	printConfigCmd := newPrintConfigCommand(global)
	cmd.AddCommand(
		runCmd,
		debugCmd,
		watchCmd,
		printConfigCmd,
		newTreeCommand(global),
		newDepsCommand(global),
		newCleanCommand(global),
		newInitCommand(global),
		newRunsCommand(global),
		newVersionCommand(),
	)
	cmd.Example = `  # Build every target of the deck in the current directory
  deckz run

  # Rebuild the intro target on every change, presentation only
  deckz watch intro --no-handout

  # Show where each configuration key comes from
  deckz print-config --output text`
	bindViper(cmd, runCmd, debugCmd, watchCmd, printConfigCmd)
	return cmd
}

func bindViper(commands ...*cobra.Command) {
	if len(commands) == 0 {
		return
	}
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("DECKZ")
	v.AutomaticEnv()
	configFile := os.Getenv("DECKZ_CONFIG")
	configureConfigFile(v, configFile)

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		if err := readConfigFile(v, configFile != ""); err != nil {
			cobra.CheckErr(err)
		}
		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed || !v.IsSet(f.Name) {
						return
					}
					if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("cli")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, paths.AppName))
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var (
		notFound   *resolve.ContentNotFoundError
		ambiguous  *resolve.AmbiguousContentError
		invocation *compiler.InvocationError
		parseErr   *catalog.ParseError
	)
	switch {
	case errors.Is(err, config.ErrConfigMissing):
		message = fmt.Sprintf("%s\nHint: run 'deckz init' at the repository root to create %s.", err, paths.GlobalConfigFile)
	case errors.Is(err, paths.ErrNotDeepEnough):
		message = fmt.Sprintf("%s\nHint: pass --deck pointing at a deck directory, or --root when the repository is not a git work tree.", err)
	case errors.As(err, &parseErr):
		message = fmt.Sprintf("%s\nHint: 'deckz tree' prints the catalog once it parses.", err)
	case errors.As(err, &notFound):
		message = fmt.Sprintf("%s\nHint: 'deckz deps' lists every missing reference of the deck.", err)
	case errors.As(err, &ambiguous):
		message = fmt.Sprintf("%s\nHint: rename one of the files or drop --strict to let the deck copy win.", err)
	case errors.As(err, &invocation):
		message = fmt.Sprintf("%s\nHint: install latexmk or set build_command in %s.", err, paths.SettingsFile)
	case errors.Is(err, errJobsFailed):
		message = "one or more jobs did not succeed"
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
