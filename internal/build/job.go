// File: internal/build/job.go
// Brief: Build variants and job planning.

package build

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/deckz/internal/render"
	"github.com/example/deckz/internal/resolve"
)

// Variant is a build flavor of a target.
type Variant string

const (
	Presentation Variant = "presentation"
	Handout      Variant = "handout"
	PrintHandout Variant = "print-handout"
)

// Switches returns the template switches of v.
func (v Variant) Switches(toc bool) render.Switches {
	return render.Switches{
		Variant: string(v),
		Handout: v == Handout || v == PrintHandout,
		Print:   v == PrintHandout,
		TOC:     toc,
	}
}

// Variants lists the selected variants in a stable order.
func Variants(presentation, handout, print bool) []Variant {
	var out []Variant
	if handout {
		out = append(out, Handout)
	}
	if presentation {
		out = append(out, Presentation)
	}
	if print {
		out = append(out, PrintHandout)
	}
	return out
}

// DeckInfo identifies the deck jobs are planned for.
type DeckInfo struct {
	Acronym  string
	BuildDir string
}

// Job compiles one or more trees under one variant in its own directory.
type Job struct {
	Name string
	// Target is empty for the deck-wide handout.
	Target  string
	Trees   []*resolve.Tree
	Variant Variant
	WorkDir string
	TOC     bool
}

// DeckWide reports whether the job covers every target of the deck.
func (j Job) DeckWide() bool { return j.Target == "" }

// JobName returns <acronym>-<target>-<variant>, lower-cased. An empty target
// yields the deck-wide name <acronym>-<variant>.
func JobName(acronym, target string, v Variant) string {
	parts := []string{acronym}
	if target != "" {
		parts = append(parts, target)
	}
	parts = append(parts, string(v))
	return strings.ToLower(strings.Join(parts, "-"))
}

// PlanJobs creates one job per tree for the presentation and handout
// variants, plus deck-wide jobs gathering every tree: a handout when the
// handout variant is selected and the deck has more than one target, and the
// print handout, which is only ever built deck-wide. Jobs are sorted by name.
func PlanJobs(deck DeckInfo, trees []*resolve.Tree, variants []Variant) []Job {
	var jobs []Job
	for _, v := range variants {
		if v.DeckWideOnly() {
			continue
		}
		for _, t := range trees {
			name := JobName(deck.Acronym, t.Target, v)
			jobs = append(jobs, Job{
				Name:    name,
				Target:  t.Target,
				Trees:   []*resolve.Tree{t},
				Variant: v,
				WorkDir: filepath.Join(deck.BuildDir, name),
			})
		}
	}
	for _, v := range DeckWideVariants(variants, len(trees)) {
		name := JobName(deck.Acronym, "", v)
		jobs = append(jobs, Job{
			Name:    name,
			Trees:   append([]*resolve.Tree(nil), trees...),
			Variant: v,
			WorkDir: filepath.Join(deck.BuildDir, name),
			TOC:     true,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// DeckWideOnly reports whether v is never built per target.
func (v Variant) DeckWideOnly() bool { return v == PrintHandout }

// DeckWideVariants lists the variants planned as deck-wide jobs for a deck
// with the given number of targets.
func DeckWideVariants(variants []Variant, targets int) []Variant {
	var out []Variant
	for _, v := range variants {
		switch {
		case v == Handout && targets > 1:
			out = append(out, v)
		case v.DeckWideOnly() && targets > 0:
			out = append(out, v)
		}
	}
	return out
}
