// File: internal/compiler/compiler.go
// Brief: External document compiler invocation (latexmk by default).

package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// DefaultGracePeriod is how long a canceled compiler may take to exit after
// SIGTERM before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Request describes one compilation.
type Request struct {
	// Dir is the working directory; Source is a file name inside it.
	Dir    string
	Source string
	// Stdout and Stderr receive a live copy of the compiler output when set.
	Stdout io.Writer
	Stderr io.Writer
}

// Result carries the captured output of a successful run.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Compiler turns a source document into its output.
type Compiler interface {
	Compile(ctx context.Context, req Request) (Result, error)
}

// InvocationError reports a compiler that could not be started.
type InvocationError struct {
	Command []string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("start %s: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Failure reports a compiler that ran and exited unsuccessfully.
type Failure struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Canceled is set when the run was stopped by context cancellation.
	Canceled bool
}

func (e *Failure) Error() string {
	if e.Canceled {
		return "compiler canceled"
	}
	return fmt.Sprintf("compiler exited with status %d", e.ExitCode)
}

// Latexmk runs Command with the source file name appended.
type Latexmk struct {
	Command     []string
	GracePeriod time.Duration
}

func (l *Latexmk) Compile(ctx context.Context, req Request) (Result, error) {
	if len(l.Command) == 0 {
		return Result{}, &InvocationError{Err: errors.New("empty build command")}
	}
	argv := append(append([]string(nil), l.Command...), req.Source)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	grace := l.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	cmd.WaitDelay = grace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = teeTo(&stdout, req.Stdout)
	cmd.Stderr = teeTo(&stderr, req.Stderr)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, &InvocationError{Command: argv, Err: pkgerrors.Wrapf(err, "exec %s in %s", argv[0], req.Dir)}
	}
	err := cmd.Wait()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}
	if err == nil {
		return res, nil
	}
	f := &Failure{ExitCode: -1, Stdout: res.Stdout, Stderr: res.Stderr, Canceled: ctx.Err() != nil}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		f.ExitCode = exitErr.ExitCode()
	}
	return res, f
}

func teeTo(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
