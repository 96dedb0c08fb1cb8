package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/moby/patternmatcher"
	"golang.org/x/sync/errgroup"

	"github.com/example/deckz/internal/paths"
)

// DefaultIgnore lists dockerignore-style patterns never watched, relative to
// each watched root.
var DefaultIgnore = []string{
	".git",
	".build",
	"pdf",
	"**/*.swp",
	"**/*~",
	"**/.#*",
	"**/4913",
}

// FSSource turns fsnotify notifications under a set of roots into Events.
// Directories given to SetRoots are watched recursively; single files are
// watched through their parent directory.
type FSSource struct {
	Log logr.Logger

	watcher *fsnotify.Watcher
	matcher *patternmatcher.PatternMatcher
	events  chan Event

	mu      sync.Mutex
	roots   []string
	files   map[string]bool
	watched map[string]bool
}

// NewFSSource creates a source ignoring DefaultIgnore plus extra patterns.
func NewFSSource(ignore []string, log logr.Logger) (*FSSource, error) {
	matcher, err := patternmatcher.New(append(append([]string(nil), DefaultIgnore...), ignore...))
	if err != nil {
		return nil, fmt.Errorf("ignore patterns: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &FSSource{
		Log:     log,
		watcher: w,
		matcher: matcher,
		events:  make(chan Event, 256),
		files:   map[string]bool{},
		watched: map[string]bool{},
	}, nil
}

// Events is closed once Run returns.
func (s *FSSource) Events() <-chan Event { return s.events }

// SetRoots replaces the watch set. Missing roots are skipped.
func (s *FSSource) SetRoots(dirs, files []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.watched {
		_ = s.watcher.Remove(p)
	}
	s.watched = map[string]bool{}
	s.files = map[string]bool{}
	s.roots = s.roots[:0]
	for _, d := range dirs {
		if d == "" {
			continue
		}
		d = filepath.Clean(d)
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			continue
		}
		s.roots = append(s.roots, d)
		if err := s.addTree(d); err != nil {
			return err
		}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		f = filepath.Clean(f)
		s.files[f] = true
		if s.underRoot(f) != "" {
			continue
		}
		dir := filepath.Dir(f)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		if err := s.add(dir); err != nil {
			return err
		}
	}
	s.Log.V(1).Info("watch set updated", "roots", len(s.roots), "dirs", len(s.watched))
	return nil
}

// Watched returns the directories currently registered with fsnotify.
func (s *FSSource) Watched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.watched))
	for p := range s.watched {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run forwards notifications until ctx is done, then closes the watcher and
// the Events channel.
func (s *FSSource) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.watcher.Close()
	})
	g.Go(func() error {
		defer close(s.events)
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-s.watcher.Events:
				if !ok {
					return nil
				}
				s.handle(ctx, ev)
			case err, ok := <-s.watcher.Errors:
				if !ok {
					return nil
				}
				s.Log.Error(err, "watcher error")
			}
		}
	})
	return g.Wait()
}

func (s *FSSource) handle(ctx context.Context, ev fsnotify.Event) {
	op, ok := convertOp(ev.Op)
	if !ok {
		return
	}
	path := filepath.Clean(ev.Name)
	s.mu.Lock()
	root := s.underRoot(path)
	relevant := s.files[path] || (root != "" && !s.ignored(root, path))
	if relevant && root != "" && op == OpCreate {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			if err := s.addTree(path); err != nil {
				s.Log.Error(err, "watch new directory", "path", path)
			}
		}
	}
	s.mu.Unlock()
	if !relevant {
		return
	}
	select {
	case s.events <- Event{Path: path, Op: op}:
	case <-ctx.Done():
	}
}

func convertOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	}
	return 0, false
}

func (s *FSSource) underRoot(path string) string {
	for _, r := range s.roots {
		if paths.Within(r, path) {
			return r
		}
	}
	return ""
}

func (s *FSSource) ignored(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	match, err := s.matcher.MatchesOrParentMatches(filepath.ToSlash(rel))
	return err == nil && match
}

func (s *FSSource) addTree(dir string) error {
	root := s.underRoot(dir)
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if root != "" && s.ignored(root, p) {
			return filepath.SkipDir
		}
		return s.add(p)
	})
}

func (s *FSSource) add(dir string) error {
	if s.watched[dir] {
		return nil
	}
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watched[dir] = true
	return nil
}
