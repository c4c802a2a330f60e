// Package gitstore implements atomic read-modify-write transactions over a
// local git repository with an optional remote mirror. Each transaction runs
// in a disposable work-tree cloned from the local repository; the final push
// back is the commit point. A rejected push is the only retriable failure.
package gitstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/volodyslav/volodyslav/internal/filesystem"
	"github.com/volodyslav/volodyslav/internal/gitwrap"
	"github.com/volodyslav/volodyslav/internal/metrics"
	"github.com/volodyslav/volodyslav/internal/retry"
)

// InitialState describes how a missing working repository is brought into
// existence: empty init, or shallow clone of a remote.
type InitialState struct {
	remoteURL string
}

// Empty initializes a fresh local-only repository when none exists.
func Empty() InitialState { return InitialState{} }

// Remote clones url when no local repository exists yet.
func Remote(url string) InitialState { return InitialState{remoteURL: url} }

// Env carries the collaborators a transaction needs.
type Env struct {
	Git *gitwrap.Git
	Log *slog.Logger
}

// WorkingRepositoryError reports that the local working repository could not
// be prepared (init, clone or re-anchor failed). Never retried.
type WorkingRepositoryError struct {
	Path string
	Err  error
}

func (e *WorkingRepositoryError) Error() string {
	return fmt.Sprintf("working repository %s: %v", e.Path, e.Err)
}

func (e *WorkingRepositoryError) Unwrap() error { return e.Err }

// Store is the handle passed to a transaction's transform function.
type Store struct {
	workTree string
	git      *gitwrap.Git
}

// WorkTree returns the disposable work-tree path for this attempt. It is
// stable for the duration of the attempt.
func (s *Store) WorkTree() string { return s.workTree }

// Commit stages all changes in the work-tree and records a commit. Multiple
// commits per transaction are allowed.
func (s *Store) Commit(ctx context.Context, message string) error {
	return s.git.CommitAll(ctx, s.workTree, message)
}

// Transaction runs one attempt: ensure the working repository, clone it into
// a temp work-tree, apply transform, push the result back. The temp
// work-tree is removed in all paths.
func Transaction[T any](ctx context.Context, env Env, workingPath string, init InitialState, transform func(context.Context, *Store) (T, error)) (T, error) {
	var zero T

	if err := ensureRepository(ctx, env, workingPath, init); err != nil {
		return zero, &WorkingRepositoryError{Path: workingPath, Err: err}
	}

	tmp, err := filesystem.CreateTempDir("gitstore-worktree-*")
	if err != nil {
		return zero, err
	}
	defer func() { _ = filesystem.DeleteDirectory(tmp) }()

	abs, err := filepath.Abs(workingPath)
	if err != nil {
		return zero, err
	}
	workTree := filepath.Join(tmp, "repo")
	// file:// forces a real transport so shallow local sources clone cleanly.
	if err := env.Git.ShallowClone(ctx, "file://"+abs, workTree); err != nil {
		return zero, err
	}

	store := &Store{workTree: workTree, git: env.Git}
	result, err := transform(ctx, store)
	if err != nil {
		return zero, err
	}

	if err := env.Git.Push(ctx, workTree); err != nil {
		return zero, err
	}
	return result, nil
}

// TransactionWithRetry wraps Transaction, retrying only push rejections.
func TransactionWithRetry[T any](ctx context.Context, env Env, workingPath string, init InitialState, cfg retry.Config, transform func(context.Context, *Store) (T, error)) (T, error) {
	return retry.Do(ctx, env.Log, "gitstore transaction "+workingPath, cfg, func(attempt int) (T, error) {
		v, err := Transaction(ctx, env, workingPath, init, transform)
		if err != nil {
			var pe *gitwrap.PushError
			if errors.As(err, &pe) {
				metrics.RecordTransactionAttempt("push_conflict")
				var zero T
				return zero, retry.Again(err)
			}
			metrics.RecordTransactionAttempt("error")
			var zero T
			return zero, err
		}
		metrics.RecordTransactionAttempt("success")
		return v, nil
	})
}

func ensureRepository(ctx context.Context, env Env, workingPath string, init InitialState) error {
	ok, err := filesystem.Exists(filepath.Join(workingPath, ".git", "index"))
	if err != nil {
		return err
	}

	if !ok {
		if init.remoteURL == "" {
			if err := filesystem.CreateDirectory(workingPath); err != nil {
				return err
			}
			return env.Git.Init(ctx, workingPath)
		}
		if err := env.Git.ShallowClone(ctx, init.remoteURL, workingPath); err != nil {
			return err
		}
		return env.Git.MakePushable(ctx, workingPath)
	}

	// Re-anchor to the remote tip when one is configured.
	hasRemote, err := env.Git.HasRemote(ctx, workingPath)
	if err != nil {
		return err
	}
	if !hasRemote {
		return nil
	}
	if err := env.Git.Pull(ctx, workingPath); err != nil {
		return err
	}
	return env.Git.Push(ctx, workingPath)
}
