// File: internal/resolve/tree.go
// Brief: Resolved target trees, flavored sections, dependency reports.

package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/deckz/internal/catalog"
)

// Tree is a target with every input resolved. It is built per cycle and not
// modified afterwards.
type Tree struct {
	Target string
	Parts  []ResolvedPart
}

type ResolvedPart struct {
	Title    string
	Sections []ResolvedSection
}

// ResolvedSection has an empty Title when it contributes no heading.
type ResolvedSection struct {
	Title  string
	Config string
	Inputs []ResolvedInput
}

type ResolvedInput struct {
	Ref   string
	Title string
	Path  string
	Level string
	Rel   string
}

// Files lists the physical files the tree depends on, sorted and unique.
func (t *Tree) Files() []string {
	set := map[string]struct{}{}
	for _, p := range t.Parts {
		for _, s := range p.Sections {
			if s.Config != "" {
				set[s.Config] = struct{}{}
			}
			for _, in := range s.Inputs {
				set[in.Path] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Inputs returns every resolved input in document order.
func (t *Tree) Inputs() []ResolvedInput {
	var out []ResolvedInput
	for _, p := range t.Parts {
		for _, s := range p.Sections {
			out = append(out, s.Inputs...)
		}
	}
	return out
}

// ResolveTarget resolves every input of t. All failures are reported together.
func (r *Resolver) ResolveTarget(t catalog.Target) (*Tree, error) {
	tree, _, _, err := r.resolveTarget(t)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// resolveTarget also returns the missing references and the other failures
// separately; err joins all of them.
func (r *Resolver) resolveTarget(t catalog.Target) (tree *Tree, missing []string, others []error, err error) {
	tree = &Tree{Target: t.Name}
	var errs []error
	fail := func(err error) {
		errs = append(errs, err)
		var nf *ContentNotFoundError
		if errors.As(err, &nf) {
			missing = append(missing, nf.Ref)
			return
		}
		others = append(others, err)
	}
	for _, p := range t.Parts {
		rp := ResolvedPart{Title: p.Title}
		for _, s := range p.Sections {
			var (
				rs  ResolvedSection
				err error
			)
			if s.Flavored() {
				rs, err = r.flavored(s, fail)
			} else {
				rs, err = r.plain(s, fail)
			}
			if err != nil {
				fail(err)
				continue
			}
			rp.Sections = append(rp.Sections, rs)
		}
		tree.Parts = append(tree.Parts, rp)
	}
	if len(errs) > 0 {
		return tree, missing, others, fmt.Errorf("target %s: %w", t.Name, errors.Join(errs...))
	}
	return tree, nil, nil, nil
}

func (r *Resolver) plain(s catalog.Section, fail func(error)) (ResolvedSection, error) {
	var rs ResolvedSection
	if s.Title != nil {
		rs.Title = *s.Title
	}
	for _, in := range s.Inputs {
		m, err := r.Resolve(in.Ref)
		if err != nil {
			fail(err)
			continue
		}
		ri := ResolvedInput{Ref: in.Ref, Path: m.Path, Level: m.Level, Rel: m.Rel}
		if in.Title != nil {
			ri.Title = *in.Title
		}
		rs.Inputs = append(rs.Inputs, ri)
	}
	// A section declared by path takes its heading from a sibling <ref>.yml.
	if s.Title == nil && s.Path != "" && len(rs.Inputs) == 1 {
		meta := strings.TrimSuffix(rs.Inputs[0].Path, ContentExt) + ".yml"
		title, ok, err := readTitle(meta)
		if err != nil {
			return ResolvedSection{}, err
		}
		if ok {
			rs.Title = title
			rs.Config = meta
		}
	}
	return rs, nil
}

func readTitle(path string) (string, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	var doc struct {
		Title string `yaml:"title"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", false, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Title, doc.Title != "", nil
}

// sectionConfig is the <section>/<section>.yml file of a flavored section.
type sectionConfig struct {
	Title         string                  `yaml:"title"`
	DefaultTitles map[string]string       `yaml:"default_titles"`
	Flavors       map[string][]flavorItem `yaml:"flavors"`
}

type flavorItem struct {
	Ref     string
	Title   *string
	NoTitle bool
}

func (f *flavorItem) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		f.Ref = n.Value
		return nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: flavor entry must have a single key", n.Line)
		}
		f.Ref = n.Content[0].Value
		v := n.Content[1]
		if v.ShortTag() == "!!null" {
			f.NoTitle = true
			return nil
		}
		title := v.Value
		f.Title = &title
		return nil
	}
	return fmt.Errorf("line %d: invalid flavor entry", n.Line)
}

func (r *Resolver) flavored(s catalog.Section, fail func(error)) (ResolvedSection, error) {
	dir, err := r.resolveDir(s.Path)
	if err != nil {
		return ResolvedSection{}, err
	}
	cfgPath := filepath.Join(dir.Path, path.Base(dir.Rel)+".yml")
	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		return ResolvedSection{}, err
	}
	var cfg sectionConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ResolvedSection{}, &FlavorError{Section: s.Path, Flavor: s.Flavor, Config: cfgPath, Msg: err.Error()}
	}
	if cfg.Flavors == nil {
		return ResolvedSection{}, &FlavorError{Section: s.Path, Flavor: s.Flavor, Config: cfgPath, Msg: "no flavors declared"}
	}
	items, ok := cfg.Flavors[s.Flavor]
	if !ok {
		avail := make([]string, 0, len(cfg.Flavors))
		for name := range cfg.Flavors {
			avail = append(avail, name)
		}
		sort.Strings(avail)
		return ResolvedSection{}, &FlavorError{Section: s.Path, Flavor: s.Flavor, Config: cfgPath, Available: avail, Msg: "unknown flavor"}
	}
	rs := ResolvedSection{Title: cfg.Title, Config: cfgPath}
	if s.Title != nil {
		rs.Title = *s.Title
	}
	excluded := map[string]bool{}
	for _, ex := range s.Excludes {
		excluded[ex] = true
	}
	for _, item := range items {
		local := item.Ref
		if !strings.HasPrefix(local, "/") {
			local = path.Join(dir.Rel, item.Ref)
		}
		if excluded[item.Ref] || excluded[local] {
			continue
		}
		m, err := r.Resolve(local)
		if err != nil && !strings.HasPrefix(item.Ref, "/") && IsNotFound(err) {
			m, err = r.Resolve(item.Ref)
		}
		if err != nil {
			fail(err)
			continue
		}
		ri := ResolvedInput{Ref: item.Ref, Path: m.Path, Level: m.Level, Rel: m.Rel}
		switch {
		case item.Title != nil:
			ri.Title = *item.Title
		case !item.NoTitle:
			ri.Title = cfg.DefaultTitles[item.Ref]
		}
		rs.Inputs = append(rs.Inputs, ri)
	}
	return rs, nil
}

// Dependencies summarizes the content usage of a catalog.
type Dependencies struct {
	Used    []string
	Missing []string
	Unused  []string
}

// Dependencies resolves every target of c and reports used files, missing
// references, and deck-local content files no target uses. Missing references
// are data; any other resolution failure is returned as an error.
func (r *Resolver) Dependencies(c *catalog.Catalog) (Dependencies, error) {
	used := map[string]struct{}{}
	missing := map[string]struct{}{}
	var failures []error
	for _, t := range c.Targets {
		tree, miss, others, _ := r.resolveTarget(t)
		for _, m := range miss {
			missing[m] = struct{}{}
		}
		for _, err := range others {
			failures = append(failures, fmt.Errorf("target %s: %w", t.Name, err))
		}
		for _, f := range tree.Files() {
			used[f] = struct{}{}
		}
	}
	var deps Dependencies
	for f := range used {
		deps.Used = append(deps.Used, f)
	}
	for m := range missing {
		deps.Missing = append(deps.Missing, m)
	}
	for _, lvl := range r.Levels {
		if lvl.Name != LevelDeck {
			continue
		}
		err := filepath.WalkDir(lvl.Dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || filepath.Ext(p) != ContentExt {
				return nil
			}
			if _, ok := used[p]; !ok {
				deps.Unused = append(deps.Unused, p)
			}
			return nil
		})
		if err != nil {
			return Dependencies{}, err
		}
	}
	sort.Strings(deps.Used)
	sort.Strings(deps.Missing)
	sort.Strings(deps.Unused)
	if len(failures) > 0 {
		return Dependencies{}, errors.Join(failures...)
	}
	return deps, nil
}
