// File: internal/build/orchestrator.go
// Brief: Bounded parallel execution of build jobs.

package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"

	"github.com/example/deckz/internal/compiler"
	"github.com/example/deckz/internal/config"
	"github.com/example/deckz/internal/render"
)

// Orchestrator runs jobs on a bounded worker pool. Jobs share nothing but
// read-only inputs; each owns its WorkDir.
type Orchestrator struct {
	Renderer *render.Renderer
	Config   *config.Resolved
	Compiler compiler.Compiler
	// SharedLinks are asset directories symlinked into every work dir.
	SharedLinks []string
	PDFDir      string
	Concurrency int
	// Silent keeps compiler output off Stdout/Stderr; it is still captured.
	Silent bool
	Stdout io.Writer
	Stderr io.Writer
	// Diff receives a unified diff of every main document that changed.
	Diff io.Writer
	// Progress, when set, observes jobs as they start and finish.
	Progress Progress
	// QuietJobs logs succeeded and canceled jobs at V(1) only, for when a
	// live console already shows them.
	QuietJobs bool
	Log       logr.Logger
}

// Progress receives job lifecycle notifications. Calls may come from
// several goroutines at once.
type Progress interface {
	Planned(jobs []Job)
	JobStarted(job Job)
	JobFinished(o Outcome)
}

// Run executes every job and returns once all of them have finished. A
// failing job never stops its siblings; canceled jobs are reported as such.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) *Report {
	report := NewReport()
	limit := o.Concurrency
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(limit))
	if o.Progress != nil {
		o.Progress.Planned(jobs)
	}
	var wg sync.WaitGroup
	for _, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			canceled := Outcome{Job: job, Status: StatusCanceled, Err: err}
			report.Add(canceled)
			if o.Progress != nil {
				o.Progress.JobFinished(canceled)
			}
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer sem.Release(1)
			if o.Progress != nil {
				o.Progress.JobStarted(job)
			}
			outcome := o.runJob(ctx, job)
			report.Add(outcome)
			if o.Progress != nil {
				o.Progress.JobFinished(outcome)
			}
		}(job)
	}
	wg.Wait()
	report.Duration = time.Since(report.Started)
	return report
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) Outcome {
	log := o.Log.WithValues("job", job.Name, "variant", job.Variant)
	done := log
	if o.QuietJobs {
		done = log.V(1)
	}
	start := time.Now()
	out := Outcome{Job: job}
	finish := func(err error) Outcome {
		out.Duration = time.Since(start)
		switch {
		case err == nil:
			out.Status = StatusSucceeded
			done.Info("job succeeded", "duration", out.Duration.Round(time.Millisecond))
		case ctx.Err() != nil:
			out.Status = StatusCanceled
			out.Err = err
			done.Info("job canceled")
		default:
			out.Status = StatusFailed
			out.Err = err
			log.Error(err, "job failed")
		}
		return out
	}
	if err := ctx.Err(); err != nil {
		return finish(err)
	}
	log.V(1).Info("preparing work dir", "dir", job.WorkDir)
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		return finish(err)
	}
	if err := o.linkAssets(job.WorkDir); err != nil {
		return finish(err)
	}
	source := job.Name + ".tex"
	doc, err := o.Renderer.Render(o.Config, job.Trees, job.Variant.Switches(job.TOC))
	if err != nil {
		return finish(err)
	}
	mainPath := filepath.Join(job.WorkDir, source)
	if o.Diff != nil {
		if d := render.Diff(mainPath, doc); d != "" {
			fmt.Fprint(o.Diff, d)
		}
	}
	changed, err := render.WriteIfChanged(mainPath, doc)
	if err != nil {
		return finish(err)
	}
	log.V(1).Info("main document", "path", mainPath, "changed", changed)
	if err := o.stage(job, log); err != nil {
		return finish(err)
	}
	req := compiler.Request{Dir: job.WorkDir, Source: source}
	if !o.Silent {
		req.Stdout, req.Stderr = o.Stdout, o.Stderr
	}
	res, err := o.Compiler.Compile(ctx, req)
	out.Stdout, out.Stderr = res.Stdout, res.Stderr
	if err != nil {
		var f *compiler.Failure
		if errors.As(err, &f) {
			out.Stdout, out.Stderr = f.Stdout, f.Stderr
		}
		return finish(err)
	}
	pdf, err := o.publish(job)
	if err != nil {
		return finish(err)
	}
	out.PDF = pdf
	return finish(nil)
}

// linkAssets symlinks each existing shared asset directory into dir.
func (o *Orchestrator) linkAssets(dir string) error {
	for _, target := range o.SharedLinks {
		info, err := os.Stat(target)
		if err != nil || !info.IsDir() {
			continue
		}
		link := filepath.Join(dir, filepath.Base(target))
		if fi, err := os.Lstat(link); err == nil {
			if fi.Mode()&os.ModeSymlink == 0 {
				return fmt.Errorf("%s already exists and is not a link to %s; clean the build directory", link, target)
			}
			current, err := filepath.EvalSymlinks(link)
			want, werr := filepath.EvalSymlinks(target)
			if err != nil || werr != nil || current != want {
				return fmt.Errorf("%s does not point to %s; clean the build directory", link, target)
			}
			continue
		}
		if err := os.Symlink(target, link); err != nil {
			return fmt.Errorf("link %s: %w", target, err)
		}
	}
	return nil
}

// stage renders every content file of the job into <workdir>/latex, leaving
// unchanged files untouched so incremental compiles stay incremental.
func (o *Orchestrator) stage(job Job, log logr.Logger) error {
	seen := map[string]bool{}
	for _, tree := range job.Trees {
		for _, in := range tree.Inputs() {
			if seen[in.Rel] {
				continue
			}
			seen[in.Rel] = true
			raw, err := os.ReadFile(in.Path)
			if err != nil {
				return fmt.Errorf("stage %s: %w", in.Ref, err)
			}
			content, err := o.Renderer.RenderContent(in.Path, string(raw), o.Config)
			if err != nil {
				return err
			}
			dst := filepath.Join(job.WorkDir, render.StagingDir, filepath.FromSlash(in.Rel)+".tex")
			changed, err := render.WriteIfChanged(dst, content)
			if err != nil {
				return fmt.Errorf("stage %s: %w", in.Ref, err)
			}
			if changed {
				log.V(1).Info("staged content", "ref", in.Ref, "from", in.Path)
			}
		}
	}
	return nil
}

// publish copies the compiled PDF to the deck's pdf directory.
func (o *Orchestrator) publish(job Job) (string, error) {
	src := filepath.Join(job.WorkDir, job.Name+".pdf")
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("compiler produced no PDF: %w", err)
	}
	defer in.Close()
	if o.PDFDir == "" {
		return src, nil
	}
	if err := os.MkdirAll(o.PDFDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(o.PDFDir, job.Name+".pdf")
	tmp, err := os.CreateTemp(o.PDFDir, ".deckz-*.pdf")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return dst, nil
}
