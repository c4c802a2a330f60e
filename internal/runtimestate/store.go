package runtimestate

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/volodyslav/volodyslav/internal/clock"
	"github.com/volodyslav/volodyslav/internal/filesystem"
	"github.com/volodyslav/volodyslav/internal/gitstore"
	"github.com/volodyslav/volodyslav/internal/retry"
)

// RepositoryName is the directory under the working directory that holds the
// runtime-state repository.
const RepositoryName = "runtime-state-repository"

// CommitMessage is recorded whenever the document changes.
const CommitMessage = "Runtime state update"

// Store mutates the runtime-state document through gitstore transactions on
// <workingDir>/runtime-state-repository.
type Store struct {
	env      gitstore.Env
	clk      clock.Clock
	log      *slog.Logger
	path     string
	retryCfg retry.Config
}

// NewStore builds a Store rooted at workingDir.
func NewStore(env gitstore.Env, clk clock.Clock, workingDir string) *Store {
	return &Store{
		env:  env,
		clk:  clk,
		log:  env.Log,
		path: filepath.Join(workingDir, RepositoryName),
	}
}

// Mutate runs fn inside one transaction. When fn queues a new state via
// SetState and its serialization differs from the file on disk, the document
// is rewritten and committed; a byte-identical state commits nothing.
// Rejected pushes are retried; all other failures propagate.
func (s *Store) Mutate(ctx context.Context, fn func(*Storage) error) error {
	_, err := gitstore.TransactionWithRetry(ctx, s.env, s.path, gitstore.Empty(), s.retryCfg,
		func(ctx context.Context, store *gitstore.Store) (struct{}, error) {
			storage := NewStorage(store.WorkTree(), s.clk, s.log)
			if err := fn(storage); err != nil {
				return struct{}{}, err
			}
			data, changed, err := storage.Result()
			if err != nil {
				return struct{}{}, err
			}
			if !changed {
				return struct{}{}, nil
			}
			path := filepath.Join(store.WorkTree(), StateFileName)
			if err := filesystem.WriteText(path, data); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, store.Commit(ctx, CommitMessage)
		})
	return err
}
