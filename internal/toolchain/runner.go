// Package toolchain resolves and runs external binaries (language servers,
// linters) behind an interface that tests can replace.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Command describes one invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// String renders the command line for logs and mock lookups.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Output is the captured result of a finished command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExecRunner abstracts command execution for testability.
type ExecRunner interface {
	// LookPath resolves a binary name against PATH.
	LookPath(name string) (string, error)

	// Run executes a command to completion. A non-zero exit is reported as an
	// *exec.ExitError alongside the captured output.
	Run(ctx context.Context, cmd Command) (Output, error)
}

// IsNotFound reports whether err means the binary does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// IsExitError reports whether err is a plain non-zero exit.
func IsExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}

// RealRunner implements ExecRunner using os/exec.
type RealRunner struct {
	// Timeout for each command execution.
	Timeout time.Duration
}

// NewRealRunner creates a runner with the given timeout.
func NewRealRunner(timeout time.Duration) *RealRunner {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RealRunner{Timeout: timeout}
}

// LookPath resolves a binary name against PATH.
func (r *RealRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes a command and returns its output.
func (r *RealRunner) Run(ctx context.Context, c Command) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() != nil && err != nil {
		return out, ctx.Err()
	}
	return out, err
}

// CachingRunner memoizes LookPath results. Detection probes the same server
// binaries once per extension, so repeated misses stay cheap.
type CachingRunner struct {
	inner ExecRunner
	mu    sync.Mutex
	paths map[string]lookResult
}

type lookResult struct {
	path string
	err  error
}

// NewCachingRunner wraps inner.
func NewCachingRunner(inner ExecRunner) *CachingRunner {
	return &CachingRunner{inner: inner, paths: make(map[string]lookResult)}
}

// LookPath implements ExecRunner.
func (c *CachingRunner) LookPath(name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.paths[name]; ok {
		return r.path, r.err
	}
	p, err := c.inner.LookPath(name)
	c.paths[name] = lookResult{path: p, err: err}
	return p, err
}

// Run implements ExecRunner; command output is never cached.
func (c *CachingRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	return c.inner.Run(ctx, cmd)
}
