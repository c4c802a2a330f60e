// Package eventlog is an append-only, git-backed event stream. Events are
// JSON lines in events.jsonl; binary attachments are copied into
// assets/<event-id>/ inside the same repository so one commit carries the
// event and its files together.
package eventlog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/volodyslav/volodyslav/internal/clock"
	"github.com/volodyslav/volodyslav/internal/filesystem"
	"github.com/volodyslav/volodyslav/internal/gitstore"
	"github.com/volodyslav/volodyslav/internal/retry"
)

// RepositoryName is the directory under the working directory that holds the
// event-log repository.
const RepositoryName = "event-log-repository"

// EventsFileName is the JSON-lines stream inside the repository.
const EventsFileName = "events.jsonl"

// CommitMessage is recorded for every appended event.
const CommitMessage = "Event log update"

// Event is one recorded occurrence. Assets are repository-relative paths.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt string         `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
	Assets     []string       `json:"assets,omitempty"`
}

// Time parses the event's timestamp.
func (e Event) Time() (time.Time, error) {
	return clock.ParseISO(e.OccurredAt)
}

// Log appends events through gitstore transactions on
// <workingDir>/event-log-repository, optionally mirrored to a remote.
type Log struct {
	env      gitstore.Env
	clk      clock.Clock
	path     string
	initial  gitstore.InitialState
	retryCfg retry.Config
}

// New builds a Log rooted at workingDir. A non-empty remoteURL makes the
// repository a pushable mirror of that remote.
func New(env gitstore.Env, clk clock.Clock, workingDir, remoteURL string) *Log {
	initial := gitstore.Empty()
	if remoteURL != "" {
		initial = gitstore.Remote(remoteURL)
	}
	return &Log{
		env:     env,
		clk:     clk,
		path:    filepath.Join(workingDir, RepositoryName),
		initial: initial,
	}
}

// Append records one event with optional asset files and commits it.
func (l *Log) Append(ctx context.Context, eventType string, data map[string]any, assets []filesystem.ExistingFile) (Event, error) {
	if eventType == "" {
		return Event{}, fmt.Errorf("event type must not be empty")
	}
	id, err := newID(l.clk.Now())
	if err != nil {
		return Event{}, err
	}

	event := Event{
		ID:         id,
		Type:       eventType,
		OccurredAt: clock.FormatISO(l.clk.Now()),
		Data:       data,
	}
	for _, asset := range assets {
		event.Assets = append(event.Assets,
			filepath.ToSlash(filepath.Join("assets", id, filepath.Base(asset.Path()))))
	}

	return gitstore.TransactionWithRetry(ctx, l.env, l.path, l.initial, l.retryCfg,
		func(ctx context.Context, store *gitstore.Store) (Event, error) {
			for i, asset := range assets {
				dst := filepath.Join(store.WorkTree(), filepath.FromSlash(event.Assets[i]))
				if err := filesystem.CopyFile(asset, dst); err != nil {
					return Event{}, err
				}
			}

			line, err := json.Marshal(event)
			if err != nil {
				return Event{}, err
			}
			path := filepath.Join(store.WorkTree(), EventsFileName)
			var existing string
			if f, ferr := filesystem.CheckFile(path); ferr == nil {
				existing, err = filesystem.ReadText(f)
				if err != nil {
					return Event{}, err
				}
			}
			if err := filesystem.WriteText(path, existing+string(line)+"\n"); err != nil {
				return Event{}, err
			}
			return event, store.Commit(ctx, CommitMessage)
		})
}

// ReadAll returns every recorded event in append order. Unparseable lines
// are skipped with a warning.
func (l *Log) ReadAll(ctx context.Context) ([]Event, error) {
	return gitstore.TransactionWithRetry(ctx, l.env, l.path, l.initial, l.retryCfg,
		func(ctx context.Context, store *gitstore.Store) ([]Event, error) {
			path := filepath.Join(store.WorkTree(), EventsFileName)
			f, err := filesystem.CheckFile(path)
			if err != nil {
				return nil, nil
			}
			data, err := filesystem.ReadText(f)
			if err != nil {
				return nil, err
			}
			var events []Event
			for _, line := range strings.Split(data, "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				var e Event
				if err := json.Unmarshal([]byte(line), &e); err != nil {
					l.env.Log.Warn("skipping unparseable event line", "error", err)
					continue
				}
				events = append(events, e)
			}
			return events, nil
		})
}

func newID(now time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(suffix)), nil
}
