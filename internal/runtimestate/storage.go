package runtimestate

import (
	"log/slog"
	"path/filepath"

	"github.com/volodyslav/volodyslav/internal/clock"
	"github.com/volodyslav/volodyslav/internal/filesystem"
)

// StateFileName is the document's file name inside its repository.
const StateFileName = "state.json"

// Storage is the transaction-scoped view of the runtime-state document. The
// existing document is parsed at most once per transaction; a queued new
// state shadows it.
type Storage struct {
	workTree string
	clk      clock.Clock
	log      *slog.Logger

	newState   *State
	existing   *State
	parsed     bool
	taskErrors []error
}

// NewStorage builds a view over state.json in the given work-tree.
func NewStorage(workTree string, clk clock.Clock, log *slog.Logger) *Storage {
	return &Storage{workTree: workTree, clk: clk, log: log}
}

// SetState queues a new state to be committed at the end of the transaction.
func (s *Storage) SetState(state *State) { s.newState = state }

// NewState returns the queued state, or nil when none was set.
func (s *Storage) NewState() *State { return s.newState }

// ExistingState lazily parses the document on disk. A missing or structurally
// corrupt file yields nil; the corruption is logged, not fatal. Per-task
// decode errors are collected in TaskErrors.
func (s *Storage) ExistingState() *State {
	if s.parsed {
		return s.existing
	}
	s.parsed = true

	path := filepath.Join(s.workTree, StateFileName)
	f, err := filesystem.CheckFile(path)
	if err != nil {
		return nil
	}
	data, err := filesystem.ReadText(f)
	if err != nil {
		s.log.Warn("unreadable runtime state file", "path", path, "error", err)
		return nil
	}
	state, taskErrors, err := Decode(data, s.log)
	if err != nil {
		s.log.Warn("discarding corrupt runtime state document", "path", path, "error", err)
		return nil
	}
	for _, te := range taskErrors {
		s.log.Warn("dropping corrupt task record", "path", path, "error", te)
	}
	s.taskErrors = taskErrors
	s.existing = state
	return s.existing
}

// TaskErrors returns per-task decode errors collected by ExistingState.
func (s *Storage) TaskErrors() []error { return s.taskErrors }

// CurrentState returns the queued state if present, otherwise the existing
// document, otherwise a fresh default anchored at the current instant.
func (s *Storage) CurrentState() *State {
	if s.newState != nil {
		return s.newState
	}
	if existing := s.ExistingState(); existing != nil {
		return existing
	}
	return DefaultState(s.clk.Now())
}

// Result serializes the queued state and reports whether the document on
// disk needs rewriting. A byte-identical serialization means no change and
// therefore no commit.
func (s *Storage) Result() (data string, changed bool, err error) {
	if s.newState == nil {
		return "", false, nil
	}
	data, err = Encode(s.newState)
	if err != nil {
		return "", false, err
	}
	path := filepath.Join(s.workTree, StateFileName)
	if f, ferr := filesystem.CheckFile(path); ferr == nil {
		if onDisk, rerr := filesystem.ReadText(f); rerr == nil && onDisk == data {
			return data, false, nil
		}
	}
	return data, true, nil
}
