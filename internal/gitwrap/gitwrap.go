// Package gitwrap provides typed bindings over the git executable. Every
// invocation passes safe.directory=* so repositories under temp directories
// and foreign-owned working trees are accepted. Push failures get their own
// error type because they are the only retriable git outcome.
package gitwrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/volodyslav/volodyslav/internal/subprocess"
)

// Commits are authored under a fixed identity; the scheduler owns its
// repositories exclusively.
const (
	AuthorName  = "volodyslav"
	AuthorEmail = "volodyslav"
	Branch      = "master"
)

// PushError reports a failed git push. It is the retriable failure mode of a
// gitstore transaction.
type PushError struct {
	Dir string
	Err error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("git push from %s failed: %v", e.Dir, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

// Git invokes the git executable through a subprocess runner.
type Git struct {
	runner *subprocess.Runner
}

func New(runner *subprocess.Runner) *Git {
	return &Git{runner: runner}
}

// Available reports whether the git executable can be resolved.
func (g *Git) Available() error {
	_, err := g.runner.Resolve("git")
	return err
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (subprocess.Result, error) {
	full := append([]string{"-c", "safe.directory=*"}, args...)
	return g.runner.Run(ctx, dir, "git", full...)
}

// Init creates a fresh repository in dir on branch master, configures it to
// accept pushes into the checked-out branch, and records one empty initial
// commit so the branch ref exists.
func (g *Git) Init(ctx context.Context, dir string) error {
	if _, err := g.run(ctx, dir, "init", "--initial-branch="+Branch); err != nil {
		return err
	}
	if err := g.MakePushable(ctx, dir); err != nil {
		return err
	}
	_, err := g.run(ctx, dir,
		"-c", "user.name="+AuthorName, "-c", "user.email="+AuthorEmail,
		"commit", "--allow-empty", "-m", "Initial commit")
	return err
}

// ShallowClone clones url into dir with depth 1 on the master branch.
func (g *Git) ShallowClone(ctx context.Context, url, dir string) error {
	_, err := g.run(ctx, "", "clone", "--depth=1", "--single-branch", "--branch="+Branch, url, dir)
	return err
}

// Clone performs a full single-branch clone of src into dir. Used for the
// disposable transaction work-trees where src is a local repository.
func (g *Git) Clone(ctx context.Context, src, dir string) error {
	_, err := g.run(ctx, "", "clone", "--single-branch", "--branch="+Branch, src, dir)
	return err
}

// Pull fast-forwards dir from its origin remote.
func (g *Git) Pull(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "pull")
	return err
}

// Push publishes dir's master branch to origin. Failures are reported as
// *PushError.
func (g *Git) Push(ctx context.Context, dir string) error {
	if _, err := g.run(ctx, dir, "push", "origin", Branch); err != nil {
		return &PushError{Dir: dir, Err: err}
	}
	return nil
}

// CommitAll stages every change in dir and records a commit under the fixed
// author identity.
func (g *Git) CommitAll(ctx context.Context, dir, message string) error {
	if _, err := g.run(ctx, dir, "add", "--all"); err != nil {
		return err
	}
	_, err := g.run(ctx, dir,
		"-c", "user.name="+AuthorName, "-c", "user.email="+AuthorEmail,
		"commit", "-m", message,
		"--author", fmt.Sprintf("%s <%s>", AuthorName, AuthorEmail))
	return err
}

// MakePushable configures dir so pushes into its currently checked-out
// branch update the work tree instead of being rejected.
func (g *Git) MakePushable(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "config", "receive.denyCurrentBranch", "updateInstead")
	return err
}

// HasRemote reports whether dir has an origin remote configured.
func (g *Git) HasRemote(ctx context.Context, dir string) (bool, error) {
	res, err := g.run(ctx, dir, "remote")
	if err != nil {
		return false, err
	}
	for _, name := range strings.Fields(res.Stdout) {
		if name == "origin" {
			return true, nil
		}
	}
	return false, nil
}

// Head returns the commit hash the master branch points at.
func (g *Git) Head(ctx context.Context, dir string) (string, error) {
	res, err := g.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
