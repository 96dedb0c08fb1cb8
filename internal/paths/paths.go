// File: internal/paths/paths.go
// Brief: Well-known locations of a deck repository.

// Package paths computes every location deckz reads or writes, relative to the
// repository root (root > company > deck). Nothing here touches the filesystem
// beyond root discovery.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/example/deckz/internal/gitinfo"
)

const (
	AppName = "deckz"

	TargetsFile       = "targets.yml"
	DebugTargetsFile  = "targets-debug.yml"
	SettingsFile      = "settings.yml"
	GlobalConfigFile  = "global-config.yml"
	UserConfigFile    = "user-config.yml"
	CompanyConfigFile = "company-config.yml"
	DeckConfigFile    = "deck-config.yml"
	SessionConfigFile = "session-config.yml"

	BuildDirName = ".build"
	PDFDirName   = "pdf"
	LatexDirName = "latex"
	SharedDir    = "shared"
)

// ErrNotDeepEnough is returned when a deck directory is not nested as root/company/deck.
var ErrNotDeepEnough = errors.New("deck directory must be nested as <root>/<company>/<deck>")

// Layout holds the repository-wide locations and, when Deck is set, the
// per-deck ones.
type Layout struct {
	Root    string
	Company string
	Deck    string

	Settings string

	Shared       string
	SharedLatex  string
	SharedImg    string
	SharedCode   string
	SharedTikz   string
	SharedPlt    string
	Templates    string
	TemplateYML  string
	TemplateTeX  string
	MainTemplate string

	UserConfigDir string
	GlobalConfig  string
	UserConfig    string

	CompanyConfig string
	CompanyLatex  string
	DeckConfig    string
	SessionConfig string
	LocalLatex    string
	BuildDir      string
	PDFDir        string
	Targets       string
	DebugTargets  string
}

// Options override discovered locations.
type Options struct {
	// Root skips repository discovery.
	Root string
	// UserConfigDir replaces $XDG_CONFIG_HOME/deckz.
	UserConfigDir string
	// SkipDepthCheck allows decks that are not exactly two levels below the root.
	SkipDepthCheck bool
}

// FindRoot locates the repository root enclosing start: the git work tree when
// there is one, otherwise the closest parent holding settings.yml or global-config.yml.
func FindRoot(start string) (string, error) {
	if root, err := gitinfo.RepoRoot(start); err == nil {
		return root, nil
	}
	abs, err := filepath.Abs(strings.TrimSpace(start))
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	current := abs
	for {
		if isRoot(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no deck repository found above %s", abs)
		}
		current = parent
	}
}

func isRoot(dir string) bool {
	for _, marker := range []string{SettingsFile, GlobalConfigFile} {
		if fi, err := os.Stat(filepath.Join(dir, marker)); err == nil && !fi.IsDir() {
			return true
		}
	}
	return false
}

// ForRoot returns the repository-wide layout with no deck selected.
func ForRoot(start string, opts Options) (*Layout, error) {
	root := opts.Root
	if root == "" {
		r, err := FindRoot(start)
		if err != nil {
			return nil, err
		}
		root = r
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	userDir := opts.UserConfigDir
	if userDir == "" {
		userDir = filepath.Join(xdg.ConfigHome, AppName)
	}
	shared := filepath.Join(root, SharedDir)
	templates := filepath.Join(root, "templates")
	l := &Layout{
		Root:          root,
		Settings:      filepath.Join(root, SettingsFile),
		Shared:        shared,
		SharedLatex:   filepath.Join(shared, LatexDirName),
		SharedImg:     filepath.Join(shared, "img"),
		SharedCode:    filepath.Join(shared, "code"),
		SharedTikz:    filepath.Join(shared, "tikz"),
		SharedPlt:     filepath.Join(shared, "plt"),
		Templates:     templates,
		TemplateYML:   filepath.Join(templates, "yml"),
		TemplateTeX:   filepath.Join(templates, "tex"),
		MainTemplate:  filepath.Join(templates, "tex", "main.tex"),
		UserConfigDir: userDir,
		GlobalConfig:  filepath.Join(root, GlobalConfigFile),
		UserConfig:    filepath.Join(userDir, UserConfigFile),
	}
	return l, nil
}

// ForDeck returns the layout of the deck at dir.
func ForDeck(dir string, opts Options) (*Layout, error) {
	deck, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	l, err := ForRoot(deck, opts)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(l.Root, deck)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%s is not inside %s: %w", deck, l.Root, ErrNotDeepEnough)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 && !opts.SkipDepthCheck {
		return nil, fmt.Errorf("%s: %w", deck, ErrNotDeepEnough)
	}
	company := filepath.Join(l.Root, parts[0])
	l.Company = parts[0]
	l.Deck = deck
	l.CompanyConfig = filepath.Join(company, CompanyConfigFile)
	l.CompanyLatex = filepath.Join(company, SharedDir, LatexDirName)
	l.DeckConfig = filepath.Join(deck, DeckConfigFile)
	l.SessionConfig = filepath.Join(deck, SessionConfigFile)
	l.LocalLatex = filepath.Join(deck, LatexDirName)
	l.BuildDir = filepath.Join(deck, BuildDirName)
	l.PDFDir = filepath.Join(deck, PDFDirName)
	l.Targets = filepath.Join(deck, TargetsFile)
	l.DebugTargets = filepath.Join(deck, DebugTargetsFile)
	return l, nil
}

// TargetsPath returns the catalog file used in the given mode.
func (l *Layout) TargetsPath(debug bool) string {
	if debug {
		return l.DebugTargets
	}
	return l.Targets
}

// ConfigFiles lists the configuration layers in precedence order, lowest first.
func (l *Layout) ConfigFiles() []string {
	return []string{l.GlobalConfig, l.UserConfig, l.CompanyConfig, l.DeckConfig, l.SessionConfig}
}

// SharedAssets lists the asset directories linked into every build directory.
func (l *Layout) SharedAssets() []string {
	return []string{l.SharedImg, l.SharedCode, l.SharedTikz, l.SharedPlt}
}

// LatexDirs lists the content search roots from highest to lowest precedence.
func (l *Layout) LatexDirs() []string {
	return []string{l.LocalLatex, l.CompanyLatex, l.SharedLatex}
}

// IsShared reports whether path lives under a location shared by several decks.
func (l *Layout) IsShared(path string) bool {
	dirs := []string{l.Shared, l.Templates}
	if l.CompanyLatex != "" {
		dirs = append(dirs, filepath.Dir(l.CompanyLatex))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if Within(dir, path) {
			return true
		}
	}
	return false
}

// Within reports whether path is dir or lies below it.
func Within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
