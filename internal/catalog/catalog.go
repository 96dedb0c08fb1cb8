// File: internal/catalog/catalog.go
// Brief: Target catalog model and selection.

// Package catalog parses a deck's targets.yml (or targets-debug.yml) into
// targets, parts, sections and section inputs, preserving declaration order.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultFile = "targets.yml"
	DebugFile   = "targets-debug.yml"

	// AllTargets is reserved; selecting it selects every target.
	AllTargets = "all"
)

// FileName returns the catalog file name for the given mode.
func FileName(debug bool) string {
	if debug {
		return DebugFile
	}
	return DefaultFile
}

// SectionInput is one logical content reference inside a section.
type SectionInput struct {
	Ref   string
	Title *string
	// NoTitle is set when the title was explicitly written as null, which
	// also suppresses default titles of flavored sections.
	NoTitle bool
}

// Section groups inputs under an optional heading. Flavored sections carry a
// Path and Flavor and get their inputs from the section directory at
// resolution time.
type Section struct {
	Title    *string
	Path     string
	Flavor   string
	Excludes []string
	Inputs   []SectionInput
}

// Flavored reports whether the section expands from a section directory.
func (s Section) Flavored() bool { return s.Flavor != "" }

type Part struct {
	Title    string
	Sections []Section
}

type Target struct {
	Name  string
	Parts []Part
}

// Refs lists every explicit input reference of the target in order.
func (t Target) Refs() []string {
	var out []string
	for _, p := range t.Parts {
		for _, s := range p.Sections {
			for _, in := range s.Inputs {
				out = append(out, in.Ref)
			}
		}
	}
	return out
}

type Catalog struct {
	Path    string
	Targets []Target
}

// Names lists target names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		out = append(out, t.Name)
	}
	return out
}

// Get returns the target called name.
func (c *Catalog) Get(name string) (Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Select keeps the named targets, in catalog order. An empty list or "all"
// keeps every target; unknown names are an error.
func (c *Catalog) Select(names []string) (*Catalog, error) {
	want := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if n == AllTargets {
			return c, nil
		}
		want[n] = true
	}
	if len(want) == 0 {
		return c, nil
	}
	out := &Catalog{Path: c.Path}
	for _, t := range c.Targets {
		if want[t.Name] {
			out.Targets = append(out.Targets, t)
			delete(want, t.Name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for n := range want {
			unknown = append(unknown, n)
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown targets in %s: %s (available: %s)", c.Path, strings.Join(unknown, ", "), strings.Join(c.Names(), ", "))
	}
	return out, nil
}
