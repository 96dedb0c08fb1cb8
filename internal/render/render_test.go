package render

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/deckz/internal/config"
	"github.com/example/deckz/internal/resolve"
)

const mainTemplate = `\documentclass[\V{ .Config.PresentationSize }]{beamer}
\V{ if .Handout }\setbeameroption{handout}\V{ end }
\V{ range .Parts }\part{\V{ .Title }}
\V{ range .Sections }\V{ if .Title }\section{\V{ .Title }}
\V{ end }\V{ range .Inputs }\input{\V{ inputPath .Rel }}
\V{ end }\V{ end }\V{ end }`

func testConfig(t *testing.T) *config.Resolved {
	t.Helper()
	root, err := config.Parse("global-config.yml", []byte("presentation_size: 10pt\ndeck_title: X\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return config.NewResolved(&config.Layer{Level: config.LevelGlobal, Root: root})
}

func treeOf(refs ...string) *resolve.Tree {
	sec := make([]resolve.ResolvedSection, 0, len(refs))
	for _, r := range refs {
		sec = append(sec, resolve.ResolvedSection{Title: "S-" + r, Inputs: []resolve.ResolvedInput{{Ref: r, Rel: r}}})
	}
	return &resolve.Tree{Target: "main", Parts: []resolve.ResolvedPart{{Title: "P", Sections: sec}}}
}

func permutations(in []string) [][]string {
	if len(in) <= 1 {
		return [][]string{append([]string(nil), in...)}
	}
	var out [][]string
	for i := range in {
		rest := append(append([]string(nil), in[:i]...), in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{in[i]}, p...))
		}
	}
	return out
}

func TestRender_OrderingFidelity(t *testing.T) {
	r, err := Parse("main.tex", mainTemplate, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := testConfig(t)
	for _, perm := range permutations([]string{"a", "b", "c", "d"}) {
		out, err := r.Render(cfg, []*resolve.Tree{treeOf(perm...)}, Switches{Variant: "presentation"})
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		last := -1
		for _, ref := range perm {
			idx := strings.Index(out, `\input{latex/`+ref+`}`)
			if idx < 0 || idx < last {
				t.Fatalf("order %v not preserved in:\n%s", perm, out)
			}
			last = idx
		}
	}
}

func TestRender_Idempotent(t *testing.T) {
	r, err := Parse("main.tex", mainTemplate, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := testConfig(t)
	trees := []*resolve.Tree{treeOf("x", "y")}
	first, err := r.Render(cfg, trees, Switches{Variant: "handout", Handout: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := r.Render(cfg, trees, Switches{Variant: "handout", Handout: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first != second {
		t.Fatalf("renders differ:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, `\documentclass[10pt]{beamer}`) || !strings.Contains(first, `\setbeameroption{handout}`) {
		t.Fatalf("unexpected output:\n%s", first)
	}
	presentation, _ := r.Render(cfg, trees, Switches{Variant: "presentation"})
	if strings.Contains(presentation, "handout") {
		t.Fatalf("presentation should not carry handout switch:\n%s", presentation)
	}
}

func TestParse_ErrorLine(t *testing.T) {
	_, err := Parse("main.tex", "line one\n\\V{ nope }\n", Options{})
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("err=%v want *Error", err)
	}
	if re.Template != "main.tex" || re.Line != 2 {
		t.Fatalf("error=%+v want main.tex:2", re)
	}
}

func TestRender_ExecErrorLine(t *testing.T) {
	r, err := Parse("main.tex", "ok\nok\n\\V{ .Config.Missing }\n", Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = r.Render(testConfig(t), nil, Switches{})
	var re *Error
	if !errors.As(err, &re) || re.Line != 3 {
		t.Fatalf("err=%v want *Error on line 3", err)
	}
}

func TestImageHelper(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "logos"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	meta := "title: Logo\nauthor: Jane\nlicense: CC-BY\n"
	if err := os.WriteFile(filepath.Join(dir, "logos", "acme.yml"), []byte(meta), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Parse("main.tex", `\V{ image "logos/acme.png" "[w]" 0.5 }|\V{ image "other" }`, Options{Images: ImagesFrom(dir)})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := r.Render(testConfig(t), nil, Switches{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `\img[w][Logo, Jane, CC-BY.]{logos/acme.png}{0.50}|\img{other}` + "\n"
	if out != want {
		t.Fatalf("out=%q want=%q", out, want)
	}
}

func TestRenderContent(t *testing.T) {
	r, err := Parse("main.tex", "x", Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	plain := "\\begin{frame}{Intro}\\end{frame}\n"
	if out, err := r.RenderContent("intro.tex", plain, testConfig(t)); err != nil || out != plain {
		t.Fatalf("plain content changed: %q err=%v", out, err)
	}
	out, err := r.RenderContent("title.tex", `\title{\V{ .Config.DeckTitle | upper }}`, testConfig(t))
	if err != nil {
		t.Fatalf("RenderContent: %v", err)
	}
	if out != `\title{X}` {
		t.Fatalf("out=%q", out)
	}
}

func TestWriteIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build", "main.tex")
	changed, err := WriteIfChanged(path, "a\n")
	if err != nil || !changed {
		t.Fatalf("first write changed=%v err=%v", changed, err)
	}
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	changed, err = WriteIfChanged(path, "a\n")
	if err != nil || changed {
		t.Fatalf("identical write changed=%v err=%v", changed, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info.ModTime().Equal(old) {
		t.Fatalf("mtime touched: %v want %v", info.ModTime(), old)
	}
	if d := Diff(path, "b\n"); !strings.Contains(d, "-a") || !strings.Contains(d, "+b") {
		t.Fatalf("diff=%q", d)
	}
	if changed, err = WriteIfChanged(path, "b\n"); err != nil || !changed {
		t.Fatalf("changed write changed=%v err=%v", changed, err)
	}
	if Diff(path, "b\n") != "" {
		t.Fatalf("expected empty diff")
	}
}
