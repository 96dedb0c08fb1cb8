package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestForDeck_Layout(t *testing.T) {
	root := t.TempDir()
	deck := filepath.Join(root, "acme", "ml-basics")
	if err := os.MkdirAll(deck, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	l, err := ForDeck(deck, Options{Root: root, UserConfigDir: filepath.Join(root, "user")})
	if err != nil {
		t.Fatalf("ForDeck: %v", err)
	}
	if l.Company != "acme" {
		t.Fatalf("company=%q want=acme", l.Company)
	}
	wantConfigs := []string{
		filepath.Join(root, "global-config.yml"),
		filepath.Join(root, "user", "user-config.yml"),
		filepath.Join(root, "acme", "company-config.yml"),
		filepath.Join(deck, "deck-config.yml"),
		filepath.Join(deck, "session-config.yml"),
	}
	if diff := cmp.Diff(wantConfigs, l.ConfigFiles()); diff != "" {
		t.Fatalf("config files mismatch (-want +got):\n%s", diff)
	}
	wantLatex := []string{
		filepath.Join(deck, "latex"),
		filepath.Join(root, "acme", "shared", "latex"),
		filepath.Join(root, "shared", "latex"),
	}
	if diff := cmp.Diff(wantLatex, l.LatexDirs()); diff != "" {
		t.Fatalf("latex dirs mismatch (-want +got):\n%s", diff)
	}
	if got := l.TargetsPath(true); got != filepath.Join(deck, "targets-debug.yml") {
		t.Fatalf("debug targets=%q", got)
	}
}

func TestForDeck_RejectsShallowDeck(t *testing.T) {
	root := t.TempDir()
	company := filepath.Join(root, "acme")
	if err := os.MkdirAll(company, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, err := ForDeck(company, Options{Root: root})
	if !errors.Is(err, ErrNotDeepEnough) {
		t.Fatalf("err=%v want ErrNotDeepEnough", err)
	}
	if _, err := ForDeck(company, Options{Root: root, SkipDepthCheck: true}); err != nil {
		t.Fatalf("SkipDepthCheck: %v", err)
	}
}

func TestFindRoot_SettingsMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, SettingsFile), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	deck := filepath.Join(root, "acme", "deck")
	if err := os.MkdirAll(deck, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := FindRoot(deck)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	if got != root {
		t.Fatalf("root=%q want=%q", got, root)
	}
}

func TestIsShared(t *testing.T) {
	root := t.TempDir()
	l, err := ForDeck(filepath.Join(root, "acme", "deck"), Options{Root: root})
	if err != nil {
		t.Fatalf("ForDeck: %v", err)
	}
	cases := map[string]bool{
		filepath.Join(root, "shared", "latex", "intro.tex"):         true,
		filepath.Join(root, "templates", "tex", "main.tex"):         true,
		filepath.Join(root, "acme", "shared", "latex", "logo.tex"):  true,
		filepath.Join(root, "acme", "deck", "latex", "part1.tex"):   false,
		filepath.Join(root, "other", "deck", "latex", "part1.tex"):  false,
		filepath.Join(root, "shared-not", "latex", "intro.tex"):     false,
	}
	for path, want := range cases {
		if got := l.IsShared(path); got != want {
			t.Fatalf("IsShared(%s)=%v want=%v", path, got, want)
		}
	}
}
