// File: internal/watch/controller.go
// Brief: Debounced rebuild loop driven by a channel of change events.

// Package watch rebuilds decks when their files change. The Controller is a
// single-goroutine state machine fed by an event channel; FSSource produces
// that channel from fsnotify.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-logr/logr"
)

type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Event is a change to one path.
type Event struct {
	Path string
	Op   Op
}

// ChangeSet is the set of cleaned paths changed since the last build. An
// empty set asks for a full build.
type ChangeSet map[string]struct{}

func (c ChangeSet) Add(path string) { c[filepath.Clean(path)] = struct{}{} }

// Paths returns the changed paths sorted.
func (c ChangeSet) Paths() []string {
	out := make([]string, 0, len(c))
	for p := range c {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type State int

const (
	Idle State = iota
	Debouncing
	Building
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Building:
		return "building"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultDebounce is used when Controller.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Controller owns the pending change set and the debounce timer. Builds run
// one at a time; events arriving during a build are coalesced into exactly
// one follow-up build.
type Controller struct {
	Events   <-chan Event
	Debounce time.Duration
	// Build runs one cycle. Its error is reported and never stops the loop.
	Build func(ctx context.Context, changes ChangeSet) error
	// Initial starts with a full build before any event arrives.
	Initial bool
	OnState func(State)
	OnError func(error)
	Log     logr.Logger

	state State
}

// Run loops until ctx is done or Events is closed. An in-flight build is
// awaited before Run returns, so no compiler outlives it.
func (c *Controller) Run(ctx context.Context) error {
	if c.Build == nil {
		return fmt.Errorf("watch controller has no build function")
	}
	debounce := c.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var (
		pending  = ChangeSet{}
		armed    bool
		building bool
		done     = make(chan error, 1)
	)
	start := func(changes ChangeSet) {
		building = true
		c.setState(Building)
		c.Log.Info("building", "changes", len(changes))
		go func() { done <- c.Build(ctx, changes) }()
	}
	arm := func() {
		if armed && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
		armed = true
		c.setState(Debouncing)
	}

	c.state = Idle
	if c.OnState != nil {
		c.OnState(Idle)
	}
	if c.Initial {
		start(ChangeSet{})
	}
	for {
		select {
		case <-ctx.Done():
			if building {
				c.report(<-done)
			}
			c.setState(Stopped)
			return nil
		case ev, ok := <-c.Events:
			if !ok {
				if building {
					c.report(<-done)
				}
				c.setState(Stopped)
				return nil
			}
			pending.Add(ev.Path)
			c.Log.V(1).Info("change", "path", ev.Path, "op", ev.Op)
			if !building {
				arm()
			}
		case <-timer.C:
			armed = false
			changes := pending
			pending = ChangeSet{}
			start(changes)
		case err := <-done:
			building = false
			c.report(err)
			if len(pending) > 0 {
				arm()
			} else {
				c.setState(Idle)
			}
		}
	}
}

// State returns the current state. It is only meaningful from OnState or
// after Run returned.
func (c *Controller) State() State { return c.state }

func (c *Controller) setState(s State) {
	if c.state == s && s != Debouncing {
		return
	}
	c.state = s
	if c.OnState != nil {
		c.OnState(s)
	}
}

func (c *Controller) report(err error) {
	if err == nil {
		return
	}
	c.Log.Error(err, "build cycle failed")
	if c.OnError != nil {
		c.OnError(err)
	}
}
