package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
)

type buildLog struct {
	mu     sync.Mutex
	cycles [][]string
}

func (b *buildLog) add(c ChangeSet) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycles = append(b.cycles, c.Paths())
	return len(b.cycles)
}

func (b *buildLog) get() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]string(nil), b.cycles...)
}

func runController(t *testing.T, c *Controller) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("controller did not stop")
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestController_RapidEventsBuildOnce(t *testing.T) {
	events := make(chan Event)
	var log buildLog
	c := &Controller{
		Events:   events,
		Debounce: 50 * time.Millisecond,
		Build: func(_ context.Context, changes ChangeSet) error {
			log.add(changes)
			return nil
		},
	}
	stop := runController(t, c)
	for _, p := range []string{"/d/a.tex", "/d/b.tex", "/d/a.tex", "/d/c.tex"} {
		events <- Event{Path: p, Op: OpWrite}
	}
	waitFor(t, "first build", func() bool { return len(log.get()) == 1 })
	time.Sleep(150 * time.Millisecond)
	stop()
	want := [][]string{{"/d/a.tex", "/d/b.tex", "/d/c.tex"}}
	if diff := cmp.Diff(want, log.get()); diff != "" {
		t.Fatalf("builds (-want +got):\n%s", diff)
	}
	if c.State() != Stopped {
		t.Fatalf("state=%s want=stopped", c.State())
	}
}

func TestController_EventsDuringBuildCoalesce(t *testing.T) {
	events := make(chan Event)
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var log buildLog
	c := &Controller{
		Events:   events,
		Debounce: 20 * time.Millisecond,
		Build: func(_ context.Context, changes ChangeSet) error {
			n := log.add(changes)
			started <- struct{}{}
			if n == 1 {
				<-release
			}
			return nil
		},
	}
	stop := runController(t, c)
	events <- Event{Path: "/d/first.tex", Op: OpWrite}
	<-started
	for _, p := range []string{"/d/x.tex", "/d/y.tex", "/d/z.tex"} {
		events <- Event{Path: p, Op: OpWrite}
	}
	close(release)
	<-started
	time.Sleep(100 * time.Millisecond)
	stop()
	want := [][]string{{"/d/first.tex"}, {"/d/x.tex", "/d/y.tex", "/d/z.tex"}}
	if diff := cmp.Diff(want, log.get()); diff != "" {
		t.Fatalf("builds (-want +got):\n%s", diff)
	}
}

func TestController_ErrorsDoNotStopLoop(t *testing.T) {
	events := make(chan Event)
	var (
		mu     sync.Mutex
		errs   []error
		states []State
	)
	var log buildLog
	c := &Controller{
		Events:   events,
		Debounce: 10 * time.Millisecond,
		Initial:  true,
		Build: func(_ context.Context, changes ChangeSet) error {
			log.add(changes)
			return errors.New("latexmk exploded")
		},
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
		OnState: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	}
	stop := runController(t, c)
	waitFor(t, "initial build", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1 && states[len(states)-1] == Idle
	})
	events <- Event{Path: "/d/a.tex", Op: OpCreate}
	waitFor(t, "second build", func() bool { return len(log.get()) == 2 })
	waitFor(t, "second error", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 2
	})
	stop()
	if got := log.get(); len(got[0]) != 0 {
		t.Fatalf("initial build changes=%v want empty", got[0])
	}
	mu.Lock()
	defer mu.Unlock()
	want := []State{Idle, Building, Idle, Debouncing, Building, Idle, Stopped}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Fatalf("states (-want +got):\n%s", diff)
	}
}

func TestController_CancelWaitsForBuild(t *testing.T) {
	events := make(chan Event)
	entered := make(chan struct{})
	finished := make(chan struct{})
	c := &Controller{
		Events:  events,
		Initial: true,
		Build: func(ctx context.Context, _ ChangeSet) error {
			close(entered)
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			close(finished)
			return ctx.Err()
		},
		Log: logr.Discard(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	<-entered
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	select {
	case <-finished:
	default:
		t.Fatalf("Run returned before the build finished")
	}
}

func TestFSSource_EmitsRelevantChanges(t *testing.T) {
	root := t.TempDir()
	deck := filepath.Join(root, "deck")
	for _, d := range []string{filepath.Join(deck, "latex"), filepath.Join(deck, ".build", "job"), filepath.Join(root, "other")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	settingsFile := filepath.Join(root, "settings.yml")
	src, err := NewFSSource([]string{"**/*.log"}, logr.Discard())
	if err != nil {
		t.Fatalf("NewFSSource: %v", err)
	}
	if err := src.SetRoots([]string{deck, filepath.Join(root, "missing")}, []string{settingsFile}); err != nil {
		t.Fatalf("SetRoots: %v", err)
	}
	want := []string{root, deck, filepath.Join(deck, "latex")}
	if diff := cmp.Diff(want, src.Watched()); diff != "" {
		t.Fatalf("watched (-want +got):\n%s", diff)
	}
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- src.Run(ctx) }()

	write := func(p string) {
		t.Helper()
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(filepath.Join(deck, ".build", "job", "main.aux"))
	write(filepath.Join(deck, "latex", "run.log"))
	write(filepath.Join(root, "other.txt"))
	target := filepath.Join(deck, "latex", "intro.tex")
	write(target)

	seen := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for !seen[target] {
		select {
		case ev := <-src.Events():
			seen[ev.Path] = true
		case <-timeout:
			t.Fatalf("no event for %s; saw %v", target, seen)
		}
	}
	write(settingsFile)
	for !seen[settingsFile] {
		select {
		case ev := <-src.Events():
			seen[ev.Path] = true
		case <-timeout:
			t.Fatalf("no event for %s; saw %v", settingsFile, seen)
		}
	}
	for _, p := range []string{filepath.Join(deck, "latex", "run.log"), filepath.Join(root, "other.txt")} {
		if seen[p] {
			t.Fatalf("unexpected event for %s", p)
		}
	}

	newDir := filepath.Join(deck, "latex", "part2")
	if err := os.Mkdir(newDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitFor(t, "new dir watched", func() bool {
		for _, w := range src.Watched() {
			if w == newDir {
				return true
			}
		}
		return false
	})

	cancel()
	if err := <-runErr; err != nil {
		t.Fatalf("Run: %v", err)
	}
	for range src.Events() {
	}
}
