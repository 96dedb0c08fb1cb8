// File: internal/resolve/resolve.go
// Brief: Logical content references to physical files (deck > company > shared).

// Package resolve maps the logical references of a target catalog onto files.
// Content never merges across levels: the first level holding a file wins.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/example/deckz/internal/paths"
)

const (
	LevelDeck    = "deck"
	LevelCompany = "company"
	LevelShared  = "shared"

	ContentExt = ".tex"
)

// Level is one content search root.
type Level struct {
	Name string
	Dir  string
}

// Resolver looks references up through Levels, highest precedence first.
type Resolver struct {
	Levels []Level
	// Strict fails references present at more than one level.
	Strict bool
	Log    logr.Logger
}

// ForLayout returns a resolver searching the deck, company and shared latex dirs.
func ForLayout(l *paths.Layout) *Resolver {
	dirs := l.LatexDirs()
	names := []string{LevelDeck, LevelCompany, LevelShared}
	r := &Resolver{}
	for i, d := range dirs {
		if d == "" {
			continue
		}
		r.Levels = append(r.Levels, Level{Name: names[i], Dir: d})
	}
	return r
}

// Match is a resolved reference.
type Match struct {
	// Rel is the cleaned logical path, slash separated, without extension.
	Rel   string
	Path  string
	Level string
}

// Logical cleans a reference into a slash separated path relative to the
// level roots. A leading "/" is accepted and dropped.
func Logical(ref string) (string, error) {
	ref = strings.TrimSpace(filepath.ToSlash(ref))
	rel := strings.TrimPrefix(path.Clean("/"+ref), "/")
	rel = strings.TrimSuffix(rel, ContentExt)
	if rel == "" || rel == "." {
		return "", fmt.Errorf("empty reference %q", ref)
	}
	return rel, nil
}

func (r *Resolver) searched() []string {
	out := make([]string, 0, len(r.Levels))
	for _, lvl := range r.Levels {
		out = append(out, lvl.Dir)
	}
	return out
}

// Resolve finds <level>/<ref>.tex.
func (r *Resolver) Resolve(ref string) (Match, error) {
	return r.find(ref, ContentExt, false)
}

// resolveDir finds the section directory <level>/<ref>/ holding <base>.yml.
func (r *Resolver) resolveDir(ref string) (Match, error) {
	return r.find(ref, "", true)
}

func (r *Resolver) find(ref, ext string, dir bool) (Match, error) {
	rel, err := Logical(ref)
	if err != nil {
		return Match{}, err
	}
	var found []Match
	for _, lvl := range r.Levels {
		candidate := filepath.Join(lvl.Dir, filepath.FromSlash(rel)+ext)
		stat := candidate
		if dir {
			stat = filepath.Join(candidate, path.Base(rel)+".yml")
		}
		info, err := os.Stat(stat)
		if err != nil || info.IsDir() {
			continue
		}
		found = append(found, Match{Rel: rel, Path: candidate, Level: lvl.Name})
		if !r.Strict {
			break
		}
	}
	if len(found) == 0 {
		return Match{}, &ContentNotFoundError{Ref: ref, Searched: r.searched()}
	}
	if len(found) > 1 {
		ps := make([]string, 0, len(found))
		for _, m := range found {
			ps = append(ps, m.Path)
		}
		return Match{}, &AmbiguousContentError{Ref: ref, Paths: ps}
	}
	r.Log.V(1).Info("resolved content", "ref", ref, "path", found[0].Path, "level", found[0].Level)
	return found[0], nil
}

// IsNotFound reports whether err contains a ContentNotFoundError.
func IsNotFound(err error) bool {
	var nf *ContentNotFoundError
	return errors.As(err, &nf)
}
