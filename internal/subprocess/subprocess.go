// Package subprocess runs external executables with captured output.
// Executable lookup on PATH is memoized per Runner so repeated git calls do
// not pay the resolution cost on every invocation.
package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Result holds the captured output of a finished subprocess.
type Result struct {
	Stdout string
	Stderr string
}

// CommandUnavailableError reports that an executable could not be resolved
// on PATH.
type CommandUnavailableError struct {
	Command string
}

func (e *CommandUnavailableError) Error() string {
	return fmt.Sprintf("command %q is not available on PATH", e.Command)
}

// ProcessFailedError reports a subprocess that started but exited unsuccessfully.
type ProcessFailedError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessFailedError) Error() string {
	msg := fmt.Sprintf("process %s %s failed (exit %d)", e.Command, strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ProcessFailedError) Unwrap() error { return e.Err }

// Runner resolves and invokes executables. Safe for concurrent use.
type Runner struct {
	mu       sync.Mutex
	resolved map[string]string
}

func NewRunner() *Runner {
	return &Runner{resolved: make(map[string]string)}
}

// Resolve returns the absolute path of command, caching successful lookups
// for the lifetime of the Runner.
func (r *Runner) Resolve(command string) (string, error) {
	r.mu.Lock()
	if p, ok := r.resolved[command]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	p, err := exec.LookPath(command)
	if err != nil {
		return "", &CommandUnavailableError{Command: command}
	}

	r.mu.Lock()
	r.resolved[command] = p
	r.mu.Unlock()
	return p, nil
}

// Run invokes command with args in dir (empty dir means the current working
// directory) and returns its captured stdout/stderr. A non-zero exit yields
// a *ProcessFailedError carrying the exit code and stderr.
func (r *Runner) Run(ctx context.Context, dir, command string, args ...string) (Result, error) {
	path, err := r.Resolve(command)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		}
		return Result{Stdout: stdout.String(), Stderr: stderr.String()}, &ProcessFailedError{
			Command:  command,
			Args:     args,
			ExitCode: code,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
