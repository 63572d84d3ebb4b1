// Package exec runs the external audio tools (ffmpeg, ffprobe, rubberband)
// with context support and uniform error reporting.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/RyanBlaney/tonic/logging"
)

var (
	ErrToolNotInstalled = errors.New("required tool not installed")
	ErrTimeout          = errors.New("operation timed out")
)

// maxStderr bounds how much tool output ends up in an error message
const maxStderr = 2048

// ProcessError represents a failure in an external process
type ProcessError struct {
	Tool     string // "ffmpeg", "ffprobe", "rubberband"
	Stage    string // "probe", "decode", "encode", "pitch_shift"
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed at %s (exit %d): %s", e.Tool, e.Stage, e.ExitCode, e.Stderr)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s failed at %s (exit %d): %v", e.Tool, e.Stage, e.ExitCode, e.Cause)
	}
	return fmt.Sprintf("%s failed at %s (exit %d)", e.Tool, e.Stage, e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// NewProcessError creates a ProcessError
func NewProcessError(tool, stage string, exitCode int, stderr string, cause error) *ProcessError {
	return &ProcessError{
		Tool:     tool,
		Stage:    stage,
		ExitCode: exitCode,
		Stderr:   stderr,
		Cause:    cause,
	}
}

// Command describes one tool invocation
type Command struct {
	Tool  string // display name used in errors and logs
	Stage string
	Path  string // executable; defaults to Tool
	Args  []string
	Stdin io.Reader
}

// Result holds command execution output
type Result struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes external commands. A zero Timeout leaves the deadline to
// the caller's context.
type Runner struct {
	Timeout time.Duration
}

// NewRunner creates a new command runner
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

// Run executes cmd and captures its output. Any failure is returned as a
// *ProcessError alongside whatever output was captured.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	path := cmd.Path
	if path == "" {
		path = cmd.Tool
	}

	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "exec_runner",
		"tool":      cmd.Tool,
		"stage":     cmd.Stage,
	})

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if cmd.Stdin != nil {
		c.Stdin = cmd.Stdin
	}

	logger.Debug("Running external command", logging.Fields{
		"command": path + " " + strings.Join(cmd.Args, " "),
	})

	start := time.Now()
	err := c.Run()

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   truncate(strings.TrimSpace(stderr.String()), maxStderr),
		Duration: time.Since(start),
	}

	if err == nil {
		logger.Debug("External command finished", logging.Fields{
			"duration_ms": result.Duration.Milliseconds(),
		})
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
	}

	cause := err
	switch {
	case errors.Is(err, exec.ErrNotFound):
		cause = fmt.Errorf("%w: %s: %w", ErrToolNotInstalled, path, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		cause = fmt.Errorf("%w after %v: %w", ErrTimeout, r.Timeout, err)
	case ctx.Err() != nil:
		cause = ctx.Err()
	}

	return result, NewProcessError(cmd.Tool, cmd.Stage, result.ExitCode, result.Stderr, cause)
}

// Available reports whether the executable can be found
func Available(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolNotInstalled, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
