package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/example/deckz/internal/catalog"
	"github.com/example/deckz/internal/paths"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newFixture(t *testing.T) (*paths.Layout, *Resolver) {
	t.Helper()
	root := t.TempDir()
	l, err := paths.ForDeck(filepath.Join(root, "acme", "deck"), paths.Options{Root: root})
	if err != nil {
		t.Fatalf("ForDeck: %v", err)
	}
	return l, ForLayout(l)
}

func TestResolve_DeckLocalWins(t *testing.T) {
	l, r := newFixture(t)
	local := filepath.Join(l.LocalLatex, "intro.tex")
	writeFile(t, local, "local")
	writeFile(t, filepath.Join(l.CompanyLatex, "intro.tex"), "company")
	writeFile(t, filepath.Join(l.SharedLatex, "intro.tex"), "shared")
	m, err := r.Resolve("intro")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.Path != local || m.Level != LevelDeck {
		t.Fatalf("match=%+v want deck-local %s", m, local)
	}
}

func TestResolve_FallsBackInOrder(t *testing.T) {
	l, r := newFixture(t)
	company := filepath.Join(l.CompanyLatex, "logo.tex")
	shared := filepath.Join(l.SharedLatex, "logo.tex")
	writeFile(t, company, "company")
	writeFile(t, shared, "shared")
	m, err := r.Resolve("/logo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.Path != company || m.Rel != "logo" {
		t.Fatalf("match=%+v want company %s", m, company)
	}
	if err := os.Remove(company); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if m, err = r.Resolve("logo"); err != nil || m.Path != shared {
		t.Fatalf("match=%+v err=%v want shared", m, err)
	}
}

func TestResolve_NotFoundNamesSearchedDirs(t *testing.T) {
	l, r := newFixture(t)
	_, err := r.Resolve("nowhere/file")
	var nf *ContentNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err=%v want *ContentNotFoundError", err)
	}
	if nf.Ref != "nowhere/file" {
		t.Fatalf("ref=%q", nf.Ref)
	}
	if diff := cmp.Diff(l.LatexDirs(), nf.Searched); diff != "" {
		t.Fatalf("searched mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_StrictAmbiguity(t *testing.T) {
	l, r := newFixture(t)
	writeFile(t, filepath.Join(l.LocalLatex, "intro.tex"), "local")
	writeFile(t, filepath.Join(l.SharedLatex, "intro.tex"), "shared")
	if _, err := r.Resolve("intro"); err != nil {
		t.Fatalf("non-strict: %v", err)
	}
	r.Strict = true
	_, err := r.Resolve("intro")
	var amb *AmbiguousContentError
	if !errors.As(err, &amb) || len(amb.Paths) != 2 {
		t.Fatalf("err=%v want *AmbiguousContentError with 2 paths", err)
	}
}

func TestResolveTarget_MissingInputFails(t *testing.T) {
	l, r := newFixture(t)
	writeFile(t, filepath.Join(l.SharedLatex, "shared", "ok.tex"), "ok")
	target := catalog.Target{Name: "main", Parts: []catalog.Part{{
		Title: "P",
		Sections: []catalog.Section{
			{Path: "shared/ok", Inputs: []catalog.SectionInput{{Ref: "shared/ok"}}},
			{Path: "local/missing", Inputs: []catalog.SectionInput{{Ref: "local/missing"}}},
		},
	}}}
	tree, err := r.ResolveTarget(target)
	if tree != nil {
		t.Fatalf("expected no tree on failure")
	}
	var nf *ContentNotFoundError
	if !errors.As(err, &nf) || nf.Ref != "local/missing" {
		t.Fatalf("err=%v want not found for local/missing", err)
	}
	if !strings.Contains(err.Error(), "target main") {
		t.Fatalf("err=%v should name the target", err)
	}
}

func TestResolveTarget_TitlesAndOrder(t *testing.T) {
	l, r := newFixture(t)
	writeFile(t, filepath.Join(l.LocalLatex, "a.tex"), "a")
	writeFile(t, filepath.Join(l.LocalLatex, "a.yml"), "title: From metadata\n")
	writeFile(t, filepath.Join(l.SharedLatex, "b.tex"), "b")
	writeFile(t, filepath.Join(l.SharedLatex, "c.tex"), "c")
	explicit := "Explicit"
	first := "First"
	target := catalog.Target{Name: "main", Parts: []catalog.Part{{
		Title: "P",
		Sections: []catalog.Section{
			{Path: "a", Inputs: []catalog.SectionInput{{Ref: "a"}}},
			{Path: "b", Title: &explicit, Inputs: []catalog.SectionInput{{Ref: "b"}}},
			{Inputs: []catalog.SectionInput{{Ref: "c", Title: &first}, {Ref: "a"}}},
		},
	}}}
	tree, err := r.ResolveTarget(target)
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	secs := tree.Parts[0].Sections
	if secs[0].Title != "From metadata" || secs[1].Title != "Explicit" || secs[2].Title != "" {
		t.Fatalf("titles=%q,%q,%q", secs[0].Title, secs[1].Title, secs[2].Title)
	}
	var refs []string
	for _, in := range tree.Inputs() {
		refs = append(refs, in.Ref)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "a"}, refs); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if secs[2].Inputs[0].Title != "First" {
		t.Fatalf("input title=%q", secs[2].Inputs[0].Title)
	}
	files := tree.Files()
	if len(files) != 4 {
		t.Fatalf("files=%v want a.tex a.yml b.tex c.tex", files)
	}
}

func TestResolveTarget_FlavoredSection(t *testing.T) {
	l, r := newFixture(t)
	dir := filepath.Join(l.SharedLatex, "models")
	writeFile(t, filepath.Join(dir, "models.yml"), `
title: Models
default_titles:
  linear: Linear models
  trees: Decision trees
flavors:
  short:
    - linear
    - trees: ~
    - /common/recap
    - boosting: Boosting
  long: [linear]
`)
	writeFile(t, filepath.Join(dir, "linear.tex"), "linear")
	writeFile(t, filepath.Join(dir, "trees.tex"), "trees")
	writeFile(t, filepath.Join(l.SharedLatex, "common", "recap.tex"), "recap")
	writeFile(t, filepath.Join(l.LocalLatex, "boosting.tex"), "boosting")
	sec := catalog.Section{Path: "models", Flavor: "short", Excludes: []string{"trees"}}
	tree, err := r.ResolveTarget(catalog.Target{Name: "t", Parts: []catalog.Part{{Title: "P", Sections: []catalog.Section{sec}}}})
	if err != nil {
		t.Fatalf("ResolveTarget: %v", err)
	}
	got := tree.Parts[0].Sections[0]
	if got.Title != "Models" {
		t.Fatalf("section title=%q", got.Title)
	}
	want := []ResolvedInput{
		{Ref: "linear", Title: "Linear models", Path: filepath.Join(dir, "linear.tex"), Level: LevelShared, Rel: "models/linear"},
		{Ref: "/common/recap", Path: filepath.Join(l.SharedLatex, "common", "recap.tex"), Level: LevelShared, Rel: "common/recap"},
		{Ref: "boosting", Title: "Boosting", Path: filepath.Join(l.LocalLatex, "boosting.tex"), Level: LevelDeck, Rel: "boosting"},
	}
	if diff := cmp.Diff(want, got.Inputs); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}

	sec.Flavor = "huge"
	_, err = r.ResolveTarget(catalog.Target{Name: "t", Parts: []catalog.Part{{Sections: []catalog.Section{sec}}}})
	var fe *FlavorError
	if !errors.As(err, &fe) || len(fe.Available) != 2 {
		t.Fatalf("err=%v want *FlavorError listing flavors", err)
	}
}

func TestDependencies(t *testing.T) {
	l, r := newFixture(t)
	used := filepath.Join(l.LocalLatex, "used.tex")
	unused := filepath.Join(l.LocalLatex, "old", "unused.tex")
	writeFile(t, used, "u")
	writeFile(t, unused, "x")
	c := &catalog.Catalog{Targets: []catalog.Target{{Name: "main", Parts: []catalog.Part{{
		Title: "P",
		Sections: []catalog.Section{
			{Path: "used", Inputs: []catalog.SectionInput{{Ref: "used"}}},
			{Path: "gone", Inputs: []catalog.SectionInput{{Ref: "gone"}}},
		},
	}}}}}
	deps, err := r.Dependencies(c)
	if err != nil {
		t.Fatalf("Dependencies: %v", err)
	}
	want := Dependencies{Used: []string{used}, Missing: []string{"gone"}, Unused: []string{unused}}
	if diff := cmp.Diff(want, deps); diff != "" {
		t.Fatalf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestDependencies_AmbiguityFailsAlongsideMissing(t *testing.T) {
	l, r := newFixture(t)
	r.Strict = true
	writeFile(t, filepath.Join(l.LocalLatex, "intro.tex"), "local")
	writeFile(t, filepath.Join(l.SharedLatex, "intro.tex"), "shared")
	c := &catalog.Catalog{Targets: []catalog.Target{{Name: "main", Parts: []catalog.Part{{
		Title: "P",
		Sections: []catalog.Section{
			{Path: "intro", Inputs: []catalog.SectionInput{{Ref: "intro"}}},
			{Path: "gone", Inputs: []catalog.SectionInput{{Ref: "gone"}}},
		},
	}}}}}
	_, err := r.Dependencies(c)
	var amb *AmbiguousContentError
	if !errors.As(err, &amb) {
		t.Fatalf("err=%v want *AmbiguousContentError", err)
	}
	if !strings.Contains(err.Error(), "target main") {
		t.Fatalf("err=%v should name the target", err)
	}
}
