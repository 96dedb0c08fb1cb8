// File: internal/history/history.go
// Brief: sqlite-backed record of build cycles and job outcomes.

// Package history keeps a small sqlite database under the deck's build
// directory with one row per build cycle and one row per job of that cycle.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/deckz/internal/build"
)

// FileName is the database file inside a deck's build directory.
const FileName = "history.sqlite"

// Cycle describes one invocation of the pipeline.
type Cycle struct {
	ID string
	// Trigger is "run", "debug" or "watch".
	Trigger string
	Deck    string
	Commit  string
	Dirty   bool
	Started time.Time
}

// CycleSummary is a row of Recent.
type CycleSummary struct {
	Cycle
	Duration  time.Duration
	Succeeded int
	Failed    int
	Canceled  int
}

// JobRow is a stored job outcome.
type JobRow struct {
	Name     string
	Target   string
	Variant  string
	Status   string
	Duration time.Duration
	Error    string
}

type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Open opens the database at path. A read-only store requires an existing
// database; a writable one is created along with its schema.
func Open(path string, readOnly bool) (*Store, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := path
	if readOnly {
		u := url.URL{Scheme: "file", Path: path}
		q := u.Query()
		q.Set("mode", "ro")
		q.Set("_busy_timeout", "5000")
		u.RawQuery = q.Encode()
		dsn = u.String()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, path: path, readOnly: readOnly}
	if !readOnly {
		if err := s.initSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS deckz_cycles (
  cycle_id TEXT PRIMARY KEY,
  trigger TEXT NOT NULL,
  deck TEXT NOT NULL,
  git_commit TEXT NOT NULL,
  git_dirty INTEGER NOT NULL,
  started_at_ns INTEGER NOT NULL,
  duration_ns INTEGER NOT NULL,
  succeeded INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  canceled INTEGER NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS deckz_jobs (
  cycle_id TEXT NOT NULL,
  job TEXT NOT NULL,
  target TEXT NOT NULL,
  variant TEXT NOT NULL,
  status TEXT NOT NULL,
  duration_ns INTEGER NOT NULL,
  error TEXT NOT NULL,
  PRIMARY KEY (cycle_id, job),
  FOREIGN KEY (cycle_id) REFERENCES deckz_cycles(cycle_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_deckz_cycles_started ON deckz_cycles(started_at_ns);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// NewCycleID returns an id sortable by start time.
func NewCycleID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

// Record stores the cycle and one row per job outcome of report.
func (s *Store) Record(ctx context.Context, c Cycle, report *build.Report) error {
	if s.readOnly {
		return errors.New("history store is read-only")
	}
	if c.ID == "" {
		c.ID = NewCycleID(c.Started)
	}
	counts := report.Counts()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO deckz_cycles (
  cycle_id, trigger, deck, git_commit, git_dirty, started_at_ns, duration_ns, succeeded, failed, canceled
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.ID, c.Trigger, c.Deck, c.Commit, boolInt(c.Dirty), c.Started.UnixNano(), int64(report.Duration),
		counts[build.StatusSucceeded], counts[build.StatusFailed], counts[build.StatusCanceled])
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	for _, o := range report.Outcomes() {
		msg := ""
		if o.Err != nil {
			msg = strings.TrimSpace(o.Err.Error())
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO deckz_jobs (cycle_id, job, target, variant, status, duration_ns, error)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, c.ID, o.Job.Name, o.Job.Target, string(o.Job.Variant), string(o.Status), int64(o.Duration), msg)
		if err != nil {
			return fmt.Errorf("insert job %s: %w", o.Job.Name, err)
		}
	}
	return tx.Commit()
}

// Recent returns the latest cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]CycleSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT cycle_id, trigger, deck, git_commit, git_dirty, started_at_ns, duration_ns, succeeded, failed, canceled
FROM deckz_cycles
ORDER BY started_at_ns DESC, cycle_id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CycleSummary
	for rows.Next() {
		var cs CycleSummary
		var dirty int
		var started, dur int64
		if err := rows.Scan(&cs.ID, &cs.Trigger, &cs.Deck, &cs.Commit, &dirty, &started, &dur, &cs.Succeeded, &cs.Failed, &cs.Canceled); err != nil {
			return nil, err
		}
		cs.Dirty = dirty != 0
		cs.Started = time.Unix(0, started)
		cs.Duration = time.Duration(dur)
		out = append(out, cs)
	}
	return out, rows.Err()
}

// Jobs returns the job rows of a cycle sorted by job name.
func (s *Store) Jobs(ctx context.Context, cycleID string) ([]JobRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT job, target, variant, status, duration_ns, error
FROM deckz_jobs
WHERE cycle_id = ?
ORDER BY job
`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JobRow
	for rows.Next() {
		var j JobRow
		var dur int64
		if err := rows.Scan(&j.Name, &j.Target, &j.Variant, &j.Status, &dur, &j.Error); err != nil {
			return nil, err
		}
		j.Duration = time.Duration(dur)
		out = append(out, j)
	}
	return out, rows.Err()
}

// PrintCycles writes cycles as an aligned table.
func PrintCycles(w io.Writer, cycles []CycleSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CYCLE\tTRIGGER\tCOMMIT\tSUCCEEDED\tFAILED\tCANCELED\tDURATION")
	for _, c := range cycles {
		commit := c.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if commit == "" {
			commit = "-"
		} else if c.Dirty {
			commit += "+dirty"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			c.ID,
			strings.ToUpper(c.Trigger),
			commit,
			c.Succeeded,
			c.Failed,
			c.Canceled,
			c.Duration.Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
