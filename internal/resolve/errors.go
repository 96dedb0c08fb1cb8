package resolve

import (
	"fmt"
	"strings"
)

// ContentNotFoundError reports a logical reference that no search level holds.
type ContentNotFoundError struct {
	Ref      string
	Searched []string
}

func (e *ContentNotFoundError) Error() string {
	return fmt.Sprintf("content %q not found (searched %s)", e.Ref, strings.Join(e.Searched, ", "))
}

// AmbiguousContentError reports, in strict mode, a reference present at
// several levels.
type AmbiguousContentError struct {
	Ref   string
	Paths []string
}

func (e *AmbiguousContentError) Error() string {
	return fmt.Sprintf("content %q is ambiguous: %s", e.Ref, strings.Join(e.Paths, ", "))
}

// FlavorError reports an unusable flavored section definition.
type FlavorError struct {
	Section   string
	Flavor    string
	Config    string
	Available []string
	Msg       string
}

func (e *FlavorError) Error() string {
	msg := fmt.Sprintf("section %q flavor %q: %s", e.Section, e.Flavor, e.Msg)
	if e.Config != "" {
		msg += " (" + e.Config + ")"
	}
	if len(e.Available) > 0 {
		msg += "; available: " + strings.Join(e.Available, ", ")
	}
	return msg
}
