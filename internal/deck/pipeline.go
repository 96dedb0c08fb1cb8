// File: internal/deck/pipeline.go
// Brief: One build cycle of a deck, from config files to compiled PDFs.

// Package deck ties the config loader, target catalog, path resolver,
// renderer and build orchestrator into a per-deck pipeline.
package deck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/deckz/internal/build"
	"github.com/example/deckz/internal/catalog"
	"github.com/example/deckz/internal/compiler"
	"github.com/example/deckz/internal/config"
	"github.com/example/deckz/internal/gitinfo"
	"github.com/example/deckz/internal/history"
	"github.com/example/deckz/internal/paths"
	"github.com/example/deckz/internal/render"
	"github.com/example/deckz/internal/resolve"
	"github.com/example/deckz/internal/settings"
)

// AcronymKey is the config key naming job prefixes.
const AcronymKey = "deck_acronym"

// Pipeline builds one deck. It is not safe for concurrent cycles; the watch
// controller runs them one at a time.
type Pipeline struct {
	Layout   *paths.Layout
	Settings settings.Settings
	Options  Options
	// Compiler defaults to latexmk with the settings build command.
	Compiler compiler.Compiler
	Stdout   io.Writer
	Stderr   io.Writer
	// Progress is handed to the orchestrator of every run.
	Progress build.Progress
	// QuietJobs demotes per-job success logs while Progress draws them.
	QuietJobs bool
	// SkipDirtyCheck records the HEAD commit without a work tree status scan.
	SkipDirtyCheck bool
	Log            logr.Logger

	trees []*resolve.Tree
}

func New(layout *paths.Layout, s settings.Settings, opts Options) *Pipeline {
	return &Pipeline{Layout: layout, Settings: s, Options: opts, Stdout: os.Stdout, Stderr: os.Stderr}
}

// LoadConfig merges the five config layers of the deck.
func (p *Pipeline) LoadConfig() (*config.Resolved, error) {
	return config.Load(config.Sources(p.Layout.ConfigFiles()))
}

// LoadCatalog parses the deck's catalog and applies the target selection.
func (p *Pipeline) LoadCatalog() (*catalog.Catalog, error) {
	c, err := catalog.ParseFile(p.Layout.TargetsPath(p.Options.Debug))
	if err != nil {
		return nil, err
	}
	return c.Select(p.Options.Targets)
}

// Resolver returns the content resolver of the deck.
func (p *Pipeline) Resolver() *resolve.Resolver {
	r := resolve.ForLayout(p.Layout)
	r.Strict = p.Options.Strict
	r.Log = p.Log
	return r
}

// Acronym prefixes job names: deck_acronym, or the deck directory name.
func (p *Pipeline) Acronym(cfg *config.Resolved) string {
	if a := strings.TrimSpace(cfg.Lookup(AcronymKey)); a != "" {
		return a
	}
	return filepath.Base(p.Layout.Deck)
}

// Trees returns the trees resolved by the last cycle.
func (p *Pipeline) Trees() []*resolve.Tree { return p.trees }

// Run executes one cycle. Config and catalog errors are returned; every
// per-target failure is part of the report. A nil only builds every target,
// otherwise only the named targets plus the deck-wide handout.
func (p *Pipeline) Run(ctx context.Context, only map[string]bool) (*build.Report, error) {
	log := p.Log.WithValues("deck", p.Layout.Deck)
	cfg, err := p.LoadConfig()
	if err != nil {
		return nil, err
	}
	cat, err := p.LoadCatalog()
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(p.Layout.MainTemplate, render.Options{
		LeftDelim:  p.Settings.Template.LeftDelim,
		RightDelim: p.Settings.Template.RightDelim,
		Images:     render.ImagesFrom(p.Layout.SharedImg),
		Log:        p.Log,
	})
	if err != nil {
		return nil, err
	}

	report := build.NewReport()
	deck := build.DeckInfo{Acronym: p.Acronym(cfg), BuildDir: p.Layout.BuildDir}
	variants := p.Options.Variants()
	resolver := p.Resolver()
	var (
		trees  []*resolve.Tree
		failed []error
	)
	for _, t := range cat.Targets {
		tree, err := resolver.ResolveTarget(t)
		if err != nil {
			failed = append(failed, err)
			if only == nil || only[t.Name] {
				for _, v := range variants {
					if !v.DeckWideOnly() {
						report.AddFailed(p.job(deck, t.Name, v), err)
					}
				}
			}
			continue
		}
		trees = append(trees, tree)
	}
	p.trees = trees

	jobs := selectJobs(build.PlanJobs(deck, trees, variants), only)
	if deckWide := build.DeckWideVariants(variants, len(cat.Targets)); len(failed) > 0 && len(deckWide) > 0 {
		// Deck-wide documents would silently miss the failed targets.
		jobs = dropDeckWide(jobs)
		for _, v := range deckWide {
			report.AddFailed(p.job(deck, "", v), errors.Join(failed...))
		}
	}
	log.Info("dispatching jobs", "jobs", len(jobs), "targets", len(trees), "failed", len(failed))

	orch := &build.Orchestrator{
		Renderer:    renderer,
		Config:      cfg,
		Compiler:    p.compiler(),
		SharedLinks: append(p.Layout.SharedAssets(), p.Settings.SharedLinks...),
		PDFDir:      p.Layout.PDFDir,
		Concurrency: p.concurrency(),
		Silent:      p.Options.Silent,
		Stdout:      p.Stdout,
		Stderr:      p.Stderr,
		Progress:    p.Progress,
		QuietJobs:   p.QuietJobs,
		Log:         p.Log,
	}
	if p.Options.ShowDiff {
		orch.Diff = p.Stdout
	}
	run := orch.Run(ctx, jobs)
	for _, o := range run.Outcomes() {
		report.Add(o)
	}
	report.Duration = time.Since(report.Started)
	return report, nil
}

// Rebuild runs a cycle restricted to the targets affected by changed.
func (p *Pipeline) Rebuild(ctx context.Context, changed []string) (*build.Report, error) {
	names, all := AffectedTargets(changed, p.trees, p.Layout)
	if all {
		p.Log.V(1).Info("rebuilding every target", "changes", len(changed))
		return p.Run(ctx, nil)
	}
	only := make(map[string]bool, len(names))
	for _, n := range names {
		only[n] = true
	}
	p.Log.Info("rebuilding affected targets", "targets", names)
	return p.Run(ctx, only)
}

// Record stores report in the deck's build history. It ignores cancellation
// of ctx so an interrupted cycle is still recorded.
func (p *Pipeline) Record(ctx context.Context, trigger string, started time.Time, report *build.Report) error {
	ctx = context.WithoutCancel(ctx)
	store, err := history.Open(filepath.Join(p.Layout.BuildDir, history.FileName), false)
	if err != nil {
		return err
	}
	defer store.Close()
	c := history.Cycle{Trigger: trigger, Deck: p.Layout.Deck, Started: started}
	if p.SkipDirtyCheck {
		if commit, err := gitinfo.Commit(p.Layout.Root); err == nil {
			c.Commit = commit
		}
	} else if commit, dirty, err := gitinfo.Head(p.Layout.Root); err == nil {
		c.Commit, c.Dirty = commit, dirty
	}
	return store.Record(ctx, c, report)
}

// Clean removes the build directory and, when pdfs is set, the pdf directory.
func (p *Pipeline) Clean(pdfs bool) error {
	dirs := []string{p.Layout.BuildDir}
	if pdfs {
		dirs = append(dirs, p.Layout.PDFDir)
	}
	for _, dir := range dirs {
		if !paths.Within(p.Layout.Deck, dir) || dir == p.Layout.Deck {
			return fmt.Errorf("refusing to remove %s outside deck %s", dir, p.Layout.Deck)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean %s: %w", dir, err)
		}
	}
	return nil
}

func (p *Pipeline) job(deck build.DeckInfo, target string, v build.Variant) build.Job {
	name := build.JobName(deck.Acronym, target, v)
	return build.Job{Name: name, Target: target, Variant: v, WorkDir: filepath.Join(deck.BuildDir, name), TOC: target == ""}
}

func (p *Pipeline) compiler() compiler.Compiler {
	if p.Compiler != nil {
		return p.Compiler
	}
	return &compiler.Latexmk{Command: p.Settings.BuildCommand}
}

func (p *Pipeline) concurrency() int {
	if p.Options.Concurrency > 0 {
		return p.Options.Concurrency
	}
	return p.Settings.Concurrency
}

func selectJobs(jobs []build.Job, only map[string]bool) []build.Job {
	if only == nil {
		return jobs
	}
	if len(only) == 0 {
		return nil
	}
	var out []build.Job
	for _, j := range jobs {
		if j.DeckWide() || only[j.Target] {
			out = append(out, j)
		}
	}
	return out
}

func dropDeckWide(jobs []build.Job) []build.Job {
	out := jobs[:0]
	for _, j := range jobs {
		if !j.DeckWide() {
			out = append(out, j)
		}
	}
	return out
}

// TargetNames returns the names of trees sorted.
func TargetNames(trees []*resolve.Tree) []string {
	out := make([]string, 0, len(trees))
	for _, t := range trees {
		out = append(out, t.Target)
	}
	sort.Strings(out)
	return out
}
