// File: internal/config/config.go
// Brief: Layered configuration loading (global > user > company > deck > session).

// Package config merges the YAML configuration layers of a deck into a single
// variable set and exposes it to templates under camel-cased keys.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Level names a configuration layer.
type Level string

const (
	LevelGlobal  Level = "global"
	LevelUser    Level = "user"
	LevelCompany Level = "company"
	LevelDeck    Level = "deck"
	LevelSession Level = "session"
)

// Levels lists layers in precedence order, lowest first.
var Levels = []Level{LevelGlobal, LevelUser, LevelCompany, LevelDeck, LevelSession}

func (l Level) rank() int {
	for i, lvl := range Levels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// ErrConfigMissing is returned when the global layer does not exist.
var ErrConfigMissing = errors.New("global configuration is missing")

// ParseError reports a layer that is not valid YAML or not a mapping.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Source is a candidate layer file.
type Source struct {
	Level Level
	Path  string
}

// Layer is one loaded configuration file.
type Layer struct {
	Level Level
	Path  string
	Root  Value
}

// Sources pairs the layer files of paths.Layout.ConfigFiles with their levels.
func Sources(files []string) []Source {
	out := make([]Source, 0, len(files))
	for i, f := range files {
		if i >= len(Levels) || strings.TrimSpace(f) == "" {
			continue
		}
		out = append(out, Source{Level: Levels[i], Path: f})
	}
	return out
}

// LoadLayer reads one layer. A missing file yields (nil, nil).
func LoadLayer(src Source) (*Layer, error) {
	raw, err := os.ReadFile(src.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", src.Path, err)
	}
	root, err := Parse(src.Path, raw)
	if err != nil {
		return nil, err
	}
	return &Layer{Level: src.Level, Path: src.Path, Root: root}, nil
}

// Parse decodes a layer document. An empty document is an empty mapping.
func Parse(path string, data []byte) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, &ParseError{Path: path, Err: err}
	}
	root, err := FromNode(&doc)
	if err != nil {
		return Value{}, &ParseError{Path: path, Err: err}
	}
	switch root.Kind() {
	case KindNull:
		return Map(), nil
	case KindMap:
		return root, nil
	}
	return Value{}, &ParseError{Path: path, Err: fmt.Errorf("top level must be a mapping, got %s", root.Kind())}
}

// Load reads sources in precedence order and merges the layers that exist.
func Load(sources []Source) (*Resolved, error) {
	last := -1
	var layers []*Layer
	haveGlobal := false
	for _, src := range sources {
		rank := src.Level.rank()
		if rank < 0 {
			return nil, fmt.Errorf("unknown config level %q", src.Level)
		}
		if rank <= last {
			return nil, fmt.Errorf("config level %s listed after a higher level", src.Level)
		}
		last = rank
		layer, err := LoadLayer(src)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		if layer.Level == LevelGlobal {
			haveGlobal = true
		}
		layers = append(layers, layer)
	}
	if !haveGlobal {
		return nil, ErrConfigMissing
	}
	return NewResolved(layers...), nil
}

// Resolved is the merged configuration of a deck.
type Resolved struct {
	root   Value
	layers []*Layer
	origin map[string]Level
}

// NewResolved merges layers in the order given.
func NewResolved(layers ...*Layer) *Resolved {
	r := &Resolved{root: Map(), origin: map[string]Level{}}
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		r.root = Merge(r.root, layer.Root)
		for _, k := range layer.Root.Keys() {
			r.origin[k] = layer.Level
		}
		r.layers = append(r.layers, layer)
	}
	return r
}

func (r *Resolved) Root() Value { return r.root }

func (r *Resolved) Layers() []*Layer { return append([]*Layer(nil), r.layers...) }

// Get returns the merged value of a top-level key.
func (r *Resolved) Get(key string) (Value, bool) { return r.root.Lookup(key) }

// Lookup returns the string form of a top-level scalar, or "" when absent.
func (r *Resolved) Lookup(key string) string {
	v, ok := r.root.Lookup(key)
	if !ok {
		return ""
	}
	return v.String()
}

// Keys returns top-level keys sorted.
func (r *Resolved) Keys() []string {
	keys := r.root.Keys()
	sort.Strings(keys)
	return keys
}

// Origin names the highest layer that defined key.
func (r *Resolved) Origin(key string) Level { return r.origin[key] }

// TemplateVars returns the merged configuration with every mapping key in
// camel form.
func (r *Resolved) TemplateVars() map[string]any {
	out, _ := r.root.convert(CamelKey).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Map returns the merged configuration with keys as written.
func (r *Resolved) Map() map[string]any {
	out, _ := r.root.Interface().(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func (r *Resolved) MarshalJSON() ([]byte, error) { return r.root.MarshalJSON() }

// WriteText prints one key per line with the layer it came from.
func (r *Resolved) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTEMPLATE\tVALUE\tLAYER")
	for _, k := range r.Keys() {
		v, _ := r.root.Lookup(k)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k, CamelKey(k), v.String(), r.origin[k])
	}
	return tw.Flush()
}

// Bootstrap copies the template at src to dst unless dst already exists.
// It reports whether a file was written.
func Bootstrap(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	raw, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("read config template: %w", err)
	}
	if _, err := Parse(src, raw); err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
