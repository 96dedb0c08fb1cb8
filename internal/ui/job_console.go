// File: internal/ui/job_console.go
// Brief: Internal ui package implementation for 'job console'.

// Package ui draws live build progress on interactive terminals.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/example/deckz/internal/build"
)

type ConsoleOptions struct {
	Enabled bool
	// Width clamps every line; zero asks the terminal and falls back to 100.
	Width int
}

// JobConsole implements build.Progress by redrawing a short block of lines
// in place: a summary, the running jobs and the last failure.
type JobConsole struct {
	out   io.Writer
	title string
	opts  ConsoleOptions

	mu         sync.Mutex
	total      int
	running    map[string]time.Time
	counts     map[build.Status]int
	lastFail   string
	totalLines int
	startedAt  time.Time
	now        func() time.Time
}

func NewJobConsole(out io.Writer, title string, opts ConsoleOptions) *JobConsole {
	if opts.Width <= 0 {
		if w, ok := TerminalWidth(out); ok {
			opts.Width = w
		} else {
			opts.Width = 100
		}
	}
	return &JobConsole{
		out:     out,
		title:   title,
		opts:    opts,
		running: map[string]time.Time{},
		counts:  map[build.Status]int{},
		now:     time.Now,
	}
}

func (c *JobConsole) Planned(jobs []build.Job) {
	if c == nil || !c.opts.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = len(jobs)
	c.running = map[string]time.Time{}
	c.counts = map[build.Status]int{}
	c.lastFail = ""
	c.startedAt = c.now()
	c.renderLocked()
}

func (c *JobConsole) JobStarted(job build.Job) {
	if c == nil || !c.opts.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[job.Name] = c.now()
	c.renderLocked()
}

func (c *JobConsole) JobFinished(o build.Outcome) {
	if c == nil || !c.opts.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, o.Job.Name)
	c.counts[o.Status]++
	if o.Status == build.StatusFailed && o.Err != nil {
		c.lastFail = fmt.Sprintf("%s: %s", o.Job.Name, firstLine(o.Err.Error()))
	}
	c.renderLocked()
}

// Done erases the block so the final report starts on a clean line.
func (c *JobConsole) Done() {
	if c == nil || !c.opts.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *JobConsole) clearLocked() {
	if c.totalLines > 0 {
		fmt.Fprintf(c.out, "\x1b[%dF\x1b[J", c.totalLines)
		c.totalLines = 0
	}
}

func (c *JobConsole) renderLocked() {
	lines := c.linesLocked()
	c.clearLocked()
	for _, line := range lines {
		fmt.Fprintln(c.out, line.render(c.opts.Width))
	}
	c.totalLines = len(lines)
}

// span is a run of text drawn in one color; a nil color draws it as is.
type span struct {
	text  string
	color *color.Color
}

type consoleLine []span

func plainLine(format string, args ...any) consoleLine {
	return consoleLine{{text: fmt.Sprintf(format, args...)}}
}

func (l consoleLine) plain() string {
	var b strings.Builder
	for _, sp := range l {
		b.WriteString(sp.text)
	}
	return b.String()
}

// render clamps the visible text to width columns, then applies colors, so
// escape sequences never count toward the width or get cut in half.
func (l consoleLine) render(width int) string {
	const tail = "..."
	fits := runewidth.StringWidth(l.plain()) <= width
	budget := width - runewidth.StringWidth(tail)
	var b strings.Builder
	for _, sp := range l {
		text := sp.text
		if !fits {
			if budget <= 0 {
				break
			}
			if w := runewidth.StringWidth(text); w > budget {
				text = runewidth.Truncate(text, budget, "")
			}
			budget -= runewidth.StringWidth(text)
		}
		if sp.color != nil {
			text = sp.color.Sprint(text)
		}
		b.WriteString(text)
	}
	if !fits {
		b.WriteString(tail)
	}
	return b.String()
}

func (c *JobConsole) linesLocked() []consoleLine {
	finished := c.counts[build.StatusSucceeded] + c.counts[build.StatusFailed] + c.counts[build.StatusCanceled]
	elapsed := c.now().Sub(c.startedAt).Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	lines := []consoleLine{
		plainLine("Building %s", c.title),
		{
			{text: fmt.Sprintf("Jobs: %d/%d done · ", finished, c.total)},
			{text: fmt.Sprintf("%d ok", c.counts[build.StatusSucceeded]), color: color.New(color.FgHiGreen)},
			{text: " · "},
			{text: fmt.Sprintf("%d failed", c.counts[build.StatusFailed]), color: color.New(color.FgHiRed)},
			{text: " · "},
			{text: fmt.Sprintf("%d canceled", c.counts[build.StatusCanceled]), color: color.New(color.FgYellow)},
			{text: fmt.Sprintf(" · Elapsed: %s", elapsed)},
		},
	}
	names := make([]string, 0, len(c.running))
	for name := range c.running {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		since := c.now().Sub(c.running[name]).Round(time.Second)
		lines = append(lines, consoleLine{
			{text: "• "},
			{text: "running", color: color.New(color.FgHiBlue)},
			{text: fmt.Sprintf(" %s (%s)", name, since)},
		})
	}
	if c.lastFail != "" {
		lines = append(lines, plainLine("Last failure: %s", c.lastFail))
	}
	return lines
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// TerminalWidth reports the column count when w is a terminal.
func TerminalWidth(w io.Writer) (int, bool) {
	type fdProvider interface {
		Fd() uintptr
	}
	if v, ok := w.(fdProvider); ok {
		if cols, _, err := term.GetSize(int(v.Fd())); err == nil {
			return cols, true
		}
	}
	return 0, false
}
