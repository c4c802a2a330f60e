package gitwrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/volodyslav/volodyslav/internal/filesystem"
	"github.com/volodyslav/volodyslav/internal/subprocess"
)

func newGit(t *testing.T) *Git {
	t.Helper()
	g := New(subprocess.NewRunner())
	if err := g.Available(); err != nil {
		t.Skipf("git not available: %v", err)
	}
	return g
}

func TestInitCreatesMasterWithInitialCommit(t *testing.T) {
	g := newGit(t)
	ctx := context.Background()
	dir := t.TempDir()

	if err := g.Init(ctx, dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	ok, err := filesystem.Exists(filepath.Join(dir, ".git", "index"))
	if err != nil || !ok {
		t.Fatalf("expected .git/index after init: %v %v", ok, err)
	}
	head, err := g.Head(ctx, dir)
	if err != nil || head == "" {
		t.Fatalf("expected initial commit: %q %v", head, err)
	}
}

func TestCommitAllAndCloneRoundTrip(t *testing.T) {
	g := newGit(t)
	ctx := context.Background()
	src := t.TempDir()

	if err := g.Init(ctx, src); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := filesystem.WriteText(filepath.Join(src, "state.json"), "{}\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := g.CommitAll(ctx, src, "Runtime state update"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "clone")
	if err := g.Clone(ctx, src, dst); err != nil {
		t.Fatalf("clone: %v", err)
	}
	ok, err := filesystem.Exists(filepath.Join(dst, "state.json"))
	if err != nil || !ok {
		t.Fatalf("cloned file missing: %v %v", ok, err)
	}
}

func TestPushIntoPushableRepository(t *testing.T) {
	g := newGit(t)
	ctx := context.Background()
	local := t.TempDir()

	if err := g.Init(ctx, local); err != nil {
		t.Fatalf("init: %v", err)
	}
	work := filepath.Join(t.TempDir(), "work")
	if err := g.Clone(ctx, local, work); err != nil {
		t.Fatalf("clone: %v", err)
	}
	if err := filesystem.WriteText(filepath.Join(work, "f.txt"), "v1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := g.CommitAll(ctx, work, "update"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := g.Push(ctx, work); err != nil {
		t.Fatalf("push: %v", err)
	}
	// updateInstead must have refreshed the checked-out tree.
	ok, err := filesystem.Exists(filepath.Join(local, "f.txt"))
	if err != nil || !ok {
		t.Fatalf("push did not update local work tree: %v %v", ok, err)
	}
}

func TestPushConflictYieldsPushError(t *testing.T) {
	g := newGit(t)
	ctx := context.Background()
	local := t.TempDir()
	if err := g.Init(ctx, local); err != nil {
		t.Fatalf("init: %v", err)
	}

	workA := filepath.Join(t.TempDir(), "a")
	workB := filepath.Join(t.TempDir(), "b")
	if err := g.Clone(ctx, local, workA); err != nil {
		t.Fatalf("clone a: %v", err)
	}
	if err := g.Clone(ctx, local, workB); err != nil {
		t.Fatalf("clone b: %v", err)
	}

	if err := filesystem.WriteText(filepath.Join(workA, "f.txt"), "a"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := g.CommitAll(ctx, workA, "from a"); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	if err := g.Push(ctx, workA); err != nil {
		t.Fatalf("push a: %v", err)
	}

	if err := filesystem.WriteText(filepath.Join(workB, "f.txt"), "b"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := g.CommitAll(ctx, workB, "from b"); err != nil {
		t.Fatalf("commit b: %v", err)
	}
	err := g.Push(ctx, workB)
	var pe *PushError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PushError for non-fast-forward push, got %v", err)
	}
}

func TestHasRemote(t *testing.T) {
	g := newGit(t)
	ctx := context.Background()
	local := t.TempDir()
	if err := g.Init(ctx, local); err != nil {
		t.Fatalf("init: %v", err)
	}
	ok, err := g.HasRemote(ctx, local)
	if err != nil || ok {
		t.Fatalf("fresh repo should have no remote: %v %v", ok, err)
	}
	work := filepath.Join(t.TempDir(), "w")
	if err := g.Clone(ctx, local, work); err != nil {
		t.Fatalf("clone: %v", err)
	}
	ok, err = g.HasRemote(ctx, work)
	if err != nil || !ok {
		t.Fatalf("clone should have origin remote: %v %v", ok, err)
	}
}
