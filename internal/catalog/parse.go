// File: internal/catalog/parse.go
// Brief: targets.yml decoding with line-aware errors.

package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile reads and parses the catalog at path.
func ParseFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(path, raw)
}

// Parse decodes a catalog document. path is used in errors only.
func Parse(path string, data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	p := parser{path: path}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, p.errf(nil, "no targets declared")
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, p.errf(root, "top level must be a list of targets")
	}
	if len(root.Content) == 0 {
		return nil, p.errf(root, "no targets declared")
	}
	c := &Catalog{Path: path}
	seen := map[string]int{}
	for _, tn := range root.Content {
		t, err := p.target(tn)
		if err != nil {
			return nil, err
		}
		if first, ok := seen[t.Name]; ok {
			return nil, &DuplicateTargetError{Name: t.Name, Path: path, Line: tn.Line, First: first}
		}
		seen[t.Name] = tn.Line
		c.Targets = append(c.Targets, t)
	}
	return c, nil
}

type parser struct {
	path string
}

func (p parser) errf(n *yaml.Node, format string, args ...any) *ParseError {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &ParseError{Path: p.path, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// fields maps keys of a mapping node to their key and value nodes, rejecting
// keys outside allowed.
func (p parser) fields(n *yaml.Node, what string, allowed ...string) (map[string][2]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errf(n, "%s must be a mapping", what)
	}
	out := make(map[string][2]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		ok := false
		for _, a := range allowed {
			if k.Value == a {
				ok = true
				break
			}
		}
		if !ok {
			return nil, p.errf(k, "unknown %s field %q (allowed: %s)", what, k.Value, strings.Join(allowed, ", "))
		}
		if _, dup := out[k.Value]; dup {
			return nil, p.errf(k, "%s field %q repeated", what, k.Value)
		}
		out[k.Value] = [2]*yaml.Node{k, v}
	}
	return out, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func (p parser) str(n *yaml.Node, what string) (string, error) {
	if n.Kind != yaml.ScalarNode || isNull(n) {
		return "", p.errf(n, "%s must be a string", what)
	}
	return n.Value, nil
}

// optTitle returns nil for an explicit null.
func (p parser) optTitle(n *yaml.Node) (*string, error) {
	if isNull(n) {
		return nil, nil
	}
	s, err := p.str(n, "title")
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p parser) target(n *yaml.Node) (Target, error) {
	f, err := p.fields(n, "target", "name", "title", "sections", "parts")
	if err != nil {
		return Target{}, err
	}
	nameNode, ok := f["name"]
	if !ok {
		return Target{}, p.errf(n, "target without name")
	}
	name, err := p.str(nameNode[1], "target name")
	if err != nil {
		return Target{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Target{}, p.errf(nameNode[1], "empty target name")
	}
	if name == AllTargets {
		return Target{}, p.errf(nameNode[1], "target name %q is reserved", AllTargets)
	}
	_, hasTitle := f["title"]
	_, hasSections := f["sections"]
	partsNode, hasParts := f["parts"]
	inline := hasTitle || hasSections
	switch {
	case inline && hasParts:
		return Target{}, p.errf(n, "target %q declares both inline sections and parts", name)
	case !inline && !hasParts:
		return Target{}, p.errf(n, "target %q declares neither sections nor parts", name)
	}
	t := Target{Name: name}
	if inline {
		part, err := p.part(n, f)
		if err != nil {
			return Target{}, err
		}
		t.Parts = []Part{part}
		return t, nil
	}
	pn := partsNode[1]
	if pn.Kind != yaml.SequenceNode || len(pn.Content) == 0 {
		return Target{}, p.errf(pn, "target %q: parts must be a non-empty list", name)
	}
	for _, item := range pn.Content {
		pf, err := p.fields(item, "part", "title", "sections")
		if err != nil {
			return Target{}, err
		}
		part, err := p.part(item, pf)
		if err != nil {
			return Target{}, err
		}
		t.Parts = append(t.Parts, part)
	}
	return t, nil
}

func (p parser) part(n *yaml.Node, f map[string][2]*yaml.Node) (Part, error) {
	var part Part
	if tn, ok := f["title"]; ok && !isNull(tn[1]) {
		title, err := p.str(tn[1], "part title")
		if err != nil {
			return Part{}, err
		}
		part.Title = title
	}
	sn, ok := f["sections"]
	if !ok || isNull(sn[1]) {
		return Part{}, p.errf(n, "part %q has no sections", part.Title)
	}
	if sn[1].Kind != yaml.SequenceNode {
		return Part{}, p.errf(sn[1], "sections must be a list")
	}
	if len(sn[1].Content) == 0 {
		return Part{}, p.errf(sn[1], "part %q has no sections", part.Title)
	}
	for _, item := range sn[1].Content {
		s, err := p.section(item)
		if err != nil {
			return Part{}, err
		}
		part.Sections = append(part.Sections, s)
	}
	return part, nil
}

func (p parser) section(n *yaml.Node) (Section, error) {
	if n.Kind == yaml.ScalarNode {
		ref, err := p.ref(n)
		if err != nil {
			return Section{}, err
		}
		return Section{Path: ref, Inputs: []SectionInput{{Ref: ref}}}, nil
	}
	f, err := p.fields(n, "section", "path", "title", "flavor", "excludes", "inputs")
	if err != nil {
		return Section{}, err
	}
	var s Section
	if tn, ok := f["title"]; ok {
		if s.Title, err = p.optTitle(tn[1]); err != nil {
			return Section{}, err
		}
	}
	pathNode, hasPath := f["path"]
	inputsNode, hasInputs := f["inputs"]
	switch {
	case hasPath && hasInputs:
		return Section{}, p.errf(n, "section declares both path and inputs")
	case !hasPath && !hasInputs:
		return Section{}, p.errf(n, "section has no inputs")
	}
	if hasInputs {
		if _, ok := f["flavor"]; ok {
			return Section{}, p.errf(n, "flavor requires path")
		}
		in := inputsNode[1]
		if in.Kind != yaml.SequenceNode || len(in.Content) == 0 {
			return Section{}, p.errf(in, "section has no inputs")
		}
		for _, item := range in.Content {
			input, err := p.input(item)
			if err != nil {
				return Section{}, err
			}
			s.Inputs = append(s.Inputs, input)
		}
		return s, nil
	}
	if s.Path, err = p.ref(pathNode[1]); err != nil {
		return Section{}, err
	}
	if fn, ok := f["flavor"]; ok {
		if s.Flavor, err = p.str(fn[1], "flavor"); err != nil {
			return Section{}, err
		}
	}
	if en, ok := f["excludes"]; ok {
		if en[1].Kind != yaml.SequenceNode {
			return Section{}, p.errf(en[1], "excludes must be a list")
		}
		for _, item := range en[1].Content {
			ref, err := p.ref(item)
			if err != nil {
				return Section{}, err
			}
			s.Excludes = append(s.Excludes, ref)
		}
	}
	if !s.Flavored() {
		s.Inputs = []SectionInput{{Ref: s.Path}}
	}
	return s, nil
}

func (p parser) input(n *yaml.Node) (SectionInput, error) {
	if n.Kind == yaml.ScalarNode {
		ref, err := p.ref(n)
		if err != nil {
			return SectionInput{}, err
		}
		return SectionInput{Ref: ref}, nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return SectionInput{}, p.errf(n, "input must be a reference or a single {reference: title} entry")
	}
	ref, err := p.ref(n.Content[0])
	if err != nil {
		return SectionInput{}, err
	}
	title, err := p.optTitle(n.Content[1])
	if err != nil {
		return SectionInput{}, err
	}
	return SectionInput{Ref: ref, Title: title, NoTitle: title == nil}, nil
}

func (p parser) ref(n *yaml.Node) (string, error) {
	s, err := p.str(n, "reference")
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "/" {
		return "", p.errf(n, "empty reference")
	}
	return s, nil
}
