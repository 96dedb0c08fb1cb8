package deck

import (
	"github.com/spf13/pflag"

	"github.com/example/deckz/internal/build"
)

// Options select what a pipeline cycle builds.
type Options struct {
	NoPresentation bool
	NoHandout      bool
	Print          bool
	// Debug reads targets-debug.yml instead of targets.yml.
	Debug bool
	// Silent keeps compiler output off the terminal; it is still shown on failure.
	Silent bool
	// Targets restricts the catalog; empty means every target.
	Targets     []string
	Concurrency int
	Strict      bool
	ShowDiff    bool
}

// NewOptions returns Options with defaults applied.
func NewOptions() *Options {
	return &Options{Silent: true}
}

// BindFlags attaches build flags to fs, defaulting to the current values, and
// returns the flag names for further customization.
func (o *Options) BindFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.BoolVar(&o.NoHandout, "no-handout", o.NoHandout, "Skip the handout variant")
	names = append(names, "no-handout")
	fs.BoolVar(&o.NoPresentation, "no-presentation", o.NoPresentation, "Skip the presentation variant")
	names = append(names, "no-presentation")
	fs.BoolVar(&o.Print, "print", o.Print, "Also build the print-handout variant")
	names = append(names, "print")
	fs.BoolVar(&o.Silent, "silent", o.Silent, "Hide compiler output unless a job fails")
	names = append(names, "silent")
	fs.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "Maximum number of parallel compiler processes (0 uses settings.yml)")
	names = append(names, "concurrency")
	fs.BoolVar(&o.Strict, "strict", o.Strict, "Fail when a content reference exists at more than one level")
	names = append(names, "strict")
	fs.BoolVar(&o.ShowDiff, "show-diff", o.ShowDiff, "Print a diff of every rendered document that changed")
	names = append(names, "show-diff")
	return names
}

// Variants lists the selected build variants.
func (o Options) Variants() []build.Variant {
	return build.Variants(!o.NoPresentation, !o.NoHandout, o.Print)
}
