// Package volodyslav schedules recurring tasks with git-backed persistent
// state. The package root is a thin facade over the internal packages,
// providing a stable API for embedding.
package volodyslav

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/volodyslav/volodyslav/internal/clock"
	cfg "github.com/volodyslav/volodyslav/internal/config"
	"github.com/volodyslav/volodyslav/internal/eventlog"
	"github.com/volodyslav/volodyslav/internal/filesystem"
	"github.com/volodyslav/volodyslav/internal/gitstore"
	"github.com/volodyslav/volodyslav/internal/gitwrap"
	"github.com/volodyslav/volodyslav/internal/history"
	"github.com/volodyslav/volodyslav/internal/metrics"
	"github.com/volodyslav/volodyslav/internal/runtimestate"
	"github.com/volodyslav/volodyslav/internal/scheduler"
	iapi "github.com/volodyslav/volodyslav/internal/server"
	"github.com/volodyslav/volodyslav/internal/subprocess"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Registration = scheduler.Registration

type TaskStatus = scheduler.TaskStatus

type HistorySink = history.Sink

type Event = eventlog.Event

type ExistingFile = filesystem.ExistingFile

// ErrAlreadyRunning is returned by Scheduler.Initialize while a previous
// initialization is still active.
var ErrAlreadyRunning = scheduler.ErrAlreadyRunning

// Options tunes a Scheduler built through this facade.
type Options struct {
	PollInterval time.Duration // zero means the default
	History      history.Sink
}

// Scheduler is a thin facade over internal/scheduler.Scheduler wired to a
// git-backed state store under workingDir.
type Scheduler struct{ inner *scheduler.Scheduler }

// NewScheduler builds a scheduler persisting into
// <workingDir>/runtime-state-repository.
func NewScheduler(workingDir string, log *slog.Logger, opts Options) *Scheduler {
	git := gitwrap.New(subprocess.NewRunner())
	env := gitstore.Env{Git: git, Log: log}
	clk := clock.System()
	store := runtimestate.NewStore(env, clk, workingDir)
	inner := scheduler.New(scheduler.Env{
		Clock:   clk,
		Log:     log,
		State:   store,
		History: opts.History,
	}, scheduler.Options{PollInterval: opts.PollInterval})
	return &Scheduler{inner: inner}
}

func (s *Scheduler) Initialize(ctx context.Context, regs []Registration) error {
	return s.inner.Initialize(ctx, regs)
}
func (s *Scheduler) Stop()                  { s.inner.Stop() }
func (s *Scheduler) Snapshot() []TaskStatus { return s.inner.Snapshot() }

// EventLog is a thin facade over internal/eventlog.Log.
type EventLog struct{ inner *eventlog.Log }

// NewEventLog builds an event log persisting into
// <workingDir>/event-log-repository, optionally mirrored to remoteURL.
func NewEventLog(workingDir, remoteURL string, log *slog.Logger) *EventLog {
	git := gitwrap.New(subprocess.NewRunner())
	env := gitstore.Env{Git: git, Log: log}
	return &EventLog{inner: eventlog.New(env, clock.System(), workingDir, remoteURL)}
}

func (l *EventLog) Append(ctx context.Context, eventType string, data map[string]any, assets []ExistingFile) (Event, error) {
	return l.inner.Append(ctx, eventType, data, assets)
}
func (l *EventLog) ReadAll(ctx context.Context) ([]Event, error) { return l.inner.ReadAll(ctx) }

// CheckFile validates that path names an existing regular file, for use as
// an event asset.
func CheckFile(path string) (ExistingFile, error) { return filesystem.CheckFile(path) }

// LoadConfig reads and validates the TOML configuration at path.
func LoadConfig(path string) (*cfg.FileConfig, error) { return cfg.Load(path) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// NewHTTPServer starts the status HTTP server on addr backed by s.
func NewHTTPServer(addr string, s *Scheduler) *http.Server {
	return iapi.NewServer(addr, s.inner)
}
