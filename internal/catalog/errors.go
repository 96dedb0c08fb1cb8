package catalog

import "fmt"

// ParseError reports a structural problem in a catalog file.
type ParseError struct {
	Path string
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("parse catalog %s: %v", loc, e.Err)
	}
	return fmt.Sprintf("parse catalog %s: %s", loc, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DuplicateTargetError reports a target name declared twice in one catalog.
type DuplicateTargetError struct {
	Name  string
	Path  string
	Line  int
	First int
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("duplicate target %q in %s (line %d, first declared on line %d)", e.Name, e.Path, e.Line, e.First)
}
