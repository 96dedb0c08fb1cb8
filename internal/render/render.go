// File: internal/render/render.go
// Brief: Document rendering from merged config and resolved target trees.

// Package render turns a deck's configuration and resolved target trees into a
// compilable document. Rendering is deterministic: it reads nothing but the
// template given to New and, for the image helper, image metadata.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-logr/logr"

	"github.com/example/deckz/internal/config"
	"github.com/example/deckz/internal/resolve"
)

const (
	DefaultLeftDelim  = `\V{`
	DefaultRightDelim = `}`

	// StagingDir is where content files are placed inside a build directory.
	StagingDir = "latex"
)

// Error wraps a template failure with the template name and line when known.
type Error struct {
	Template string
	Line     int
	Err      error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("render %s:%d: %v", e.Template, e.Line, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.Template, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var lineRe = regexp.MustCompile(`template: ([^:]+):(\d+)`)

func wrap(name string, err error) error {
	if err == nil {
		return nil
	}
	e := &Error{Template: name, Err: err}
	if m := lineRe.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[2]); convErr == nil {
			e.Line = n
		}
	}
	return e
}

// Switches are the only values that differ between variants of a target.
type Switches struct {
	Variant string
	Handout bool
	Print   bool
	TOC     bool
}

// Context is the data handed to the main template.
type Context struct {
	Config  map[string]any
	Target  string
	Targets []string
	Parts   []resolve.ResolvedPart
	Variant string
	Handout bool
	Print   bool
	TOC     bool
}

type Options struct {
	LeftDelim  string
	RightDelim string
	// Images supplies license metadata for the image helper; nil disables it.
	Images ImageLookup
	Log    logr.Logger
}

func (o Options) delims() (string, string) {
	left, right := o.LeftDelim, o.RightDelim
	if left == "" {
		left = DefaultLeftDelim
	}
	if right == "" {
		right = DefaultRightDelim
	}
	return left, right
}

// Renderer holds a parsed main template.
type Renderer struct {
	name string
	tmpl *template.Template
	opts Options
}

// New parses the template file at templatePath.
func New(templatePath string, opts Options) (*Renderer, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Parse(templatePath, string(raw), opts)
}

// Parse builds a renderer from template source.
func Parse(name, src string, opts Options) (*Renderer, error) {
	r := &Renderer{name: name, opts: opts}
	tmpl, err := r.parse(name, src)
	if err != nil {
		return nil, err
	}
	r.tmpl = tmpl
	return r, nil
}

func (r *Renderer) parse(name, src string) (*template.Template, error) {
	left, right := r.opts.delims()
	tmpl, err := template.New(path.Base(name)).
		Delims(left, right).
		Option("missingkey=error").
		Funcs(r.funcs()).
		Parse(src)
	if err != nil {
		return nil, wrap(name, err)
	}
	return tmpl, nil
}

func (r *Renderer) funcs() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["camelcase"] = config.CamelKey
	fm["pathJoin"] = func(parts ...string) string { return path.Join(parts...) }
	fm["inputPath"] = func(rel string) string { return path.Join(StagingDir, rel) }
	fm["image"] = r.image
	return fm
}

// Render produces the document for trees under the given switches.
func (r *Renderer) Render(cfg *config.Resolved, trees []*resolve.Tree, sw Switches) (string, error) {
	ctx := Context{
		Config:  cfg.TemplateVars(),
		Variant: sw.Variant,
		Handout: sw.Handout,
		Print:   sw.Print,
		TOC:     sw.TOC,
	}
	for _, t := range trees {
		ctx.Targets = append(ctx.Targets, t.Target)
		ctx.Parts = append(ctx.Parts, t.Parts...)
	}
	if len(trees) == 1 {
		ctx.Target = trees[0].Target
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, ctx); err != nil {
		return "", wrap(r.name, err)
	}
	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	r.opts.Log.V(1).Info("rendered document", "template", r.name, "targets", ctx.Targets, "variant", sw.Variant, "bytes", len(out))
	return out, nil
}

// RenderContent renders a content file, which may use template actions, with
// the configuration as its data.
func (r *Renderer) RenderContent(name, src string, cfg *config.Resolved) (string, error) {
	left, _ := r.opts.delims()
	if !strings.Contains(src, left) {
		return src, nil
	}
	tmpl, err := r.parse(name, src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Context{Config: cfg.TemplateVars()}); err != nil {
		return "", wrap(name, err)
	}
	return buf.String(), nil
}
