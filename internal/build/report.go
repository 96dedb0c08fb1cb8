// File: internal/build/report.go
// Brief: Job outcomes and the end-of-run table.

package build

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/example/deckz/internal/compiler"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Outcome is the result of one job.
type Outcome struct {
	Job      Job
	Status   Status
	Err      error
	Stdout   string
	Stderr   string
	Duration time.Duration
	PDF      string
}

// Report collects outcomes; it is safe for concurrent use.
type Report struct {
	mu       sync.Mutex
	outcomes []Outcome
	Started  time.Time
	Duration time.Duration
}

func NewReport() *Report { return &Report{Started: time.Now()} }

// Add records an outcome.
func (r *Report) Add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	sort.SliceStable(r.outcomes, func(i, j int) bool { return r.outcomes[i].Job.Name < r.outcomes[j].Job.Name })
}

// AddFailed records a job that failed before reaching the compiler.
func (r *Report) AddFailed(job Job, err error) {
	r.Add(Outcome{Job: job, Status: StatusFailed, Err: err})
}

// Outcomes returns outcomes sorted by job name.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// OK reports whether every job succeeded.
func (r *Report) OK() bool {
	for _, o := range r.Outcomes() {
		if o.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Counts returns the number of outcomes per status.
func (r *Report) Counts() map[Status]int {
	out := map[Status]int{}
	for _, o := range r.Outcomes() {
		out[o.Status]++
	}
	return out
}

// Err summarizes failures, or returns nil when every job succeeded.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	c := r.Counts()
	return fmt.Errorf("%d of %d jobs did not succeed (%d failed, %d canceled)", c[StatusFailed]+c[StatusCanceled], len(r.Outcomes()), c[StatusFailed], c[StatusCanceled])
}

var (
	statusOK       = color.New(color.FgGreen).SprintFunc()
	statusFailed   = color.New(color.FgRed).SprintFunc()
	statusCanceled = color.New(color.FgYellow).SprintFunc()
)

const diagnosticTail = 40

// PrintReport writes an aligned table of outcomes followed by the captured
// diagnostics of every job that did not succeed.
func PrintReport(w io.Writer, r *Report, colorize bool) error {
	outcomes := r.Outcomes()
	if len(outcomes) == 0 {
		_, err := fmt.Fprintln(w, "No jobs scheduled.")
		return err
	}
	nameW, statusW := runewidth.StringWidth("JOB"), runewidth.StringWidth("STATUS")
	for _, o := range outcomes {
		nameW = max(nameW, runewidth.StringWidth(o.Job.Name))
		statusW = max(statusW, runewidth.StringWidth(string(o.Status)))
	}
	fmt.Fprintf(w, "%s  %s  %s  %s\n", runewidth.FillRight("JOB", nameW), runewidth.FillRight("STATUS", statusW), runewidth.FillRight("TIME", 7), "RESULT")
	for _, o := range outcomes {
		status := runewidth.FillRight(string(o.Status), statusW)
		if colorize {
			switch o.Status {
			case StatusSucceeded:
				status = statusOK(status)
			case StatusFailed:
				status = statusFailed(status)
			default:
				status = statusCanceled(status)
			}
		}
		result := o.PDF
		if o.Err != nil {
			result = firstLine(o.Err.Error())
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n", runewidth.FillRight(o.Job.Name, nameW), status, runewidth.FillRight(o.Duration.Round(100*time.Millisecond).String(), 7), result)
	}
	for _, o := range outcomes {
		if o.Status != StatusFailed {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", o.Job.Name)
		if o.Err != nil {
			var f *compiler.Failure
			if !errors.As(o.Err, &f) {
				fmt.Fprintln(w, o.Err.Error())
			}
		}
		if s := strings.TrimSpace(o.Stderr); s != "" {
			fmt.Fprintf(w, "stderr:\n%s\n", tail(s, diagnosticTail))
		}
		if s := strings.TrimSpace(o.Stdout); s != "" {
			fmt.Fprintf(w, "stdout (last %d lines):\n%s\n", diagnosticTail, tail(s, diagnosticTail))
		}
	}
	c := r.Counts()
	_, err := fmt.Fprintf(w, "\n%d succeeded, %d failed, %d canceled\n", c[StatusSucceeded], c[StatusFailed], c[StatusCanceled])
	return err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
