package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// PrintTree writes the catalog as an indented outline, one input per line with
// titles aligned in a second column.
func PrintTree(w io.Writer, c *Catalog) error {
	width := 0
	for _, t := range c.Targets {
		for _, p := range t.Parts {
			for _, s := range p.Sections {
				if s.Flavored() {
					width = max(width, runewidth.StringWidth(s.Path+"@"+s.Flavor))
				}
				for _, in := range s.Inputs {
					width = max(width, runewidth.StringWidth(in.Ref))
				}
			}
		}
	}
	for _, t := range c.Targets {
		if _, err := fmt.Fprintln(w, t.Name); err != nil {
			return err
		}
		for _, p := range t.Parts {
			title := p.Title
			if title == "" {
				title = "(untitled part)"
			}
			fmt.Fprintf(w, "  %s\n", title)
			for _, s := range p.Sections {
				if s.Title != nil {
					fmt.Fprintf(w, "    § %s\n", *s.Title)
				}
				if s.Flavored() {
					fmt.Fprintf(w, "      %s  (flavor)\n", runewidth.FillRight(s.Path+"@"+s.Flavor, width))
				}
				for _, in := range s.Inputs {
					line := "      " + runewidth.FillRight(in.Ref, width)
					if in.Title != nil {
						line += "  " + *in.Title
					}
					if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
