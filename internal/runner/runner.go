// Package runner invokes external commands and captures their exit code,
// stdout and stderr. Every invocation is bounded by a timeout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a command when no WithTimeout option is given.
const DefaultTimeout = 10 * time.Second

// Result captures the outcome of a finished command.
// Stdout and Stderr are whitespace-trimmed.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner runs an external command. Implementations must return a non-nil
// error only when the command could not be started or did not finish
// (missing binary, timeout, cancellation). A non-zero exit is not an error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

type config struct {
	timeout time.Duration
}

// Option configures an ExecRunner.
type Option func(*config)

// WithTimeout sets the per-command timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	timeout time.Duration
}

// New returns an ExecRunner with the given options applied.
func New(opts ...Option) *ExecRunner {
	cfg := config{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ExecRunner{timeout: cfg.timeout}
}

// Run executes name with args and waits for it to exit or time out.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()

	res := Result{
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}

	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", name, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("%s: %w", name, err)
}

// Func adapts a plain function to the Runner interface.
type Func func(ctx context.Context, name string, args ...string) (Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}
