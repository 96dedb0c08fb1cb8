// File: cmd/deckz/config_cmd.go
// Brief: CLI command wiring and implementation for 'print-config' and 'init'.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/example/deckz/internal/config"
	"github.com/example/deckz/internal/deck"
	"github.com/example/deckz/internal/paths"
)

func newPrintConfigCommand(global *globalOptions) *cobra.Command {
	var (
		output       string
		showSettings bool
	)
	cmd := &cobra.Command{
		Use:   "print-config",
		Short: "Print the merged configuration of the deck without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p, err := openDeck(cmd, global, global.Deck, *deck.NewOptions())
			if err != nil {
				return err
			}
			if showSettings {
				raw, err := p.Settings.YAML()
				if err != nil {
					return err
				}
				_, err = out.Write(raw)
				return err
			}
			cfg, err := p.LoadConfig()
			if err != nil {
				return err
			}
			switch strings.ToLower(output) {
			case "text", "":
				return cfg.WriteText(out)
			case "json":
				raw, err := cfg.MarshalJSON()
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, raw, "", "  "); err != nil {
					return err
				}
				buf.WriteByte('\n')
				_, err = buf.WriteTo(out)
				return err
			case "yaml":
				raw, err := cfg.MarshalJSON()
				if err != nil {
					return err
				}
				y, err := yaml.JSONToYAML(raw)
				if err != nil {
					return err
				}
				_, err = out.Write(y)
				return err
			}
			return fmt.Errorf("unknown output %q (expected text, yaml, or json)", output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, yaml, json")
	cmd.Flags().BoolVar(&showSettings, "settings", false, "Print the effective settings.yml instead")
	return cmd
}

func newInitCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create missing configuration files from templates/yml",
		Long:  "init copies the configuration templates of the repository to every layer location that has no file yet. Existing files are never overwritten.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			l, s, err := loadSettings(global, global.Deck)
			if err != nil {
				return err
			}
			if deckLayout, err := paths.ForDeck(global.Deck, paths.Options{Root: global.Root, UserConfigDir: s.UserConfigDir}); err == nil {
				l = deckLayout
			} else if s.UserConfigDir != "" {
				l.UserConfigDir = s.UserConfigDir
				l.UserConfig = filepath.Join(s.UserConfigDir, paths.UserConfigFile)
			}
			for _, dst := range l.ConfigFiles() {
				if dst == "" || filepath.Base(dst) == paths.SessionConfigFile {
					continue
				}
				src := filepath.Join(l.TemplateYML, filepath.Base(dst))
				if _, err := os.Stat(src); err != nil {
					fmt.Fprintf(out, "skip    %s (no template %s)\n", dst, src)
					continue
				}
				written, err := config.Bootstrap(src, dst)
				if err != nil {
					return err
				}
				if written {
					fmt.Fprintf(out, "created %s\n", dst)
				} else {
					fmt.Fprintf(out, "exists  %s\n", dst)
				}
			}
			return nil
		},
	}
	return cmd
}
