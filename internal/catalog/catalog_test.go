package catalog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strp(s string) *string { return &s }

func TestParse_InlineAndNestedForms(t *testing.T) {
	doc := `
- name: intro
  title: Introduction
  sections:
    - basics/welcome
    - path: basics/history
      title: A short history
    - title: Hands-on
      inputs:
        - labs/setup
        - labs/first: First lab
        - labs/second: ~
- name: advanced
  parts:
    - title: Part one
      sections:
        - path: models
          flavor: short
          excludes: [models/transformers]
    - title: Part two
      sections:
        - wrapup
`
	c, err := Parse("targets.yml", []byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Catalog{
		Path: "targets.yml",
		Targets: []Target{
			{
				Name: "intro",
				Parts: []Part{{
					Title: "Introduction",
					Sections: []Section{
						{Path: "basics/welcome", Inputs: []SectionInput{{Ref: "basics/welcome"}}},
						{Path: "basics/history", Title: strp("A short history"), Inputs: []SectionInput{{Ref: "basics/history"}}},
						{Title: strp("Hands-on"), Inputs: []SectionInput{
							{Ref: "labs/setup"},
							{Ref: "labs/first", Title: strp("First lab")},
							{Ref: "labs/second", NoTitle: true},
						}},
					},
				}},
			},
			{
				Name: "advanced",
				Parts: []Part{
					{Title: "Part one", Sections: []Section{{Path: "models", Flavor: "short", Excludes: []string{"models/transformers"}}}},
					{Title: "Part two", Sections: []Section{{Path: "wrapup", Inputs: []SectionInput{{Ref: "wrapup"}}}}},
				},
			},
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_PreservesOrder(t *testing.T) {
	refs := []string{"z", "a", "m", "b", "y"}
	var b strings.Builder
	b.WriteString("- name: main\n  title: Main\n  sections:\n")
	for _, r := range refs {
		b.WriteString("    - " + r + "\n")
	}
	c, err := Parse("targets.yml", []byte(b.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(refs, c.Targets[0].Refs()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DuplicateTarget(t *testing.T) {
	doc := "- name: a\n  title: A\n  sections: [x]\n- name: a\n  title: B\n  sections: [y]\n"
	_, err := Parse("targets.yml", []byte(doc))
	var dup *DuplicateTargetError
	if !errors.As(err, &dup) {
		t.Fatalf("err=%v want *DuplicateTargetError", err)
	}
	if dup.Name != "a" || dup.Line != 4 || dup.First != 1 {
		t.Fatalf("unexpected duplicate error %+v", dup)
	}
}

func TestParse_StructuralErrors(t *testing.T) {
	cases := map[string]string{
		"part without sections":  "- name: a\n  parts:\n    - title: P\n",
		"empty sections":         "- name: a\n  title: A\n  sections: []\n",
		"missing name":           "- title: A\n  sections: [x]\n",
		"reserved name":          "- name: all\n  title: A\n  sections: [x]\n",
		"inline and nested":      "- name: a\n  title: A\n  sections: [x]\n  parts: []\n",
		"neither form":           "- name: a\n",
		"empty inputs":           "- name: a\n  title: A\n  sections:\n    - inputs: []\n",
		"path and inputs":        "- name: a\n  title: A\n  sections:\n    - path: x\n      inputs: [y]\n",
		"unknown field":          "- name: a\n  title: A\n  sectoins: [x]\n",
		"empty reference":        "- name: a\n  title: A\n  sections: ['  ']\n",
		"not a list":             "name: a\n",
		"multi-key input":        "- name: a\n  title: A\n  sections:\n    - inputs:\n        - {x: X, y: Y}\n",
		"malformed yaml":         "- name: [a\n",
		"empty document":         "",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("targets.yml", []byte(doc))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err=%v want *ParseError", err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	c := &Catalog{Path: "targets.yml", Targets: []Target{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	got, err := c.Select([]string{"c", "a"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, got.Names()); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
	if all, _ := c.Select([]string{"all"}); len(all.Targets) != 3 {
		t.Fatalf("all selected %d targets", len(all.Targets))
	}
	if _, err := c.Select([]string{"a", "nope"}); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("err=%v want unknown target error", err)
	}
}

func TestPrintTree(t *testing.T) {
	c, err := Parse("targets.yml", []byte("- name: main\n  title: Main\n  sections:\n    - title: S\n      inputs:\n        - intro: Hello\n        - long/reference\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := PrintTree(&buf, c); err != nil {
		t.Fatalf("PrintTree: %v", err)
	}
	want := "main\n  Main\n    § S\n      intro           Hello\n      long/reference\n"
	if buf.String() != want {
		t.Fatalf("tree=\n%s\nwant=\n%s", buf.String(), want)
	}
}

func TestFileName(t *testing.T) {
	if FileName(false) != "targets.yml" || FileName(true) != "targets-debug.yml" {
		t.Fatalf("unexpected catalog file names")
	}
}
