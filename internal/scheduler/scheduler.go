// Package scheduler runs registered tasks on cron schedules with persistent
// bookkeeping. A single cooperative loop polls the clock; within a tick,
// tasks execute sequentially and all record updates land in one state
// transaction. Missed fires are not made up: only the most recent boundary
// since the last evaluation triggers an execution.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/volodyslav/volodyslav/internal/clock"
	"github.com/volodyslav/volodyslav/internal/history"
	"github.com/volodyslav/volodyslav/internal/metrics"
	"github.com/volodyslav/volodyslav/internal/runtimestate"
)

// ErrAlreadyRunning is returned by Initialize while a previous initialization
// is still active.
var ErrAlreadyRunning = errors.New("scheduler is already running")

// DefaultPollInterval is used when Options leaves PollInterval zero.
const DefaultPollInterval = time.Second

// StateStore persists the runtime-state document. Implemented by
// runtimestate.Store; tests substitute a plain-directory store.
type StateStore interface {
	Mutate(ctx context.Context, fn func(*runtimestate.Storage) error) error
}

// Env carries the scheduler's collaborators. History may be nil.
type Env struct {
	Clock   clock.Clock
	Log     *slog.Logger
	State   StateStore
	History history.Sink
}

// Options tunes the loop.
type Options struct {
	PollInterval time.Duration
}

// TaskStatus is a point-in-time view of one task, served by the status API.
type TaskStatus struct {
	Name              string        `json:"name"`
	CronExpression    string        `json:"cronExpression"`
	RetryDelay        time.Duration `json:"retryDelay"`
	LastSuccessTime   time.Time     `json:"lastSuccessTime,omitzero"`
	LastFailureTime   time.Time     `json:"lastFailureTime,omitzero"`
	LastAttemptTime   time.Time     `json:"lastAttemptTime,omitzero"`
	PendingRetryUntil time.Time     `json:"pendingRetryUntil,omitzero"`
}

// Scheduler owns the polling loop. One instance per process.
type Scheduler struct {
	env  Env
	opts Options

	mu       sync.Mutex
	running  bool
	tasks    []*task
	stopCh   chan struct{}
	done     chan struct{}
	stopping atomic.Bool
}

// New builds a stopped scheduler.
func New(env Env, opts Options) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Scheduler{env: env, opts: opts}
}

// Initialize validates the registrations, reconciles them with the persisted
// state and starts the polling loop. A second call while running returns
// ErrAlreadyRunning.
func (s *Scheduler) Initialize(ctx context.Context, regs []Registration) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	tasks, err := buildTasks(regs)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].reg.Name < tasks[j].reg.Name })
	s.running = true
	s.tasks = tasks
	s.stopping.Store(false)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.reconcile(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		// The loop never starts on this path, so done must be closed here
		// or a concurrent Stop would wait on it forever.
		close(s.done)
		s.mu.Unlock()
		return fmt.Errorf("reconcile registrations: %w", err)
	}

	go s.loop()
	return nil
}

// Stop flags the loop to halt and waits for the current tick, including any
// in-flight callback, to finish. Safe to call on a stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopping.Store(true)
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Snapshot reports the current per-task bookkeeping, sorted by name.
func (s *Scheduler) Snapshot() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskStatus{
			Name:              t.reg.Name,
			CronExpression:    t.record.CronExpression,
			RetryDelay:        t.record.RetryDelay,
			LastSuccessTime:   t.record.LastSuccessTime,
			LastFailureTime:   t.record.LastFailureTime,
			LastAttemptTime:   t.record.LastAttemptTime,
			PendingRetryUntil: t.record.PendingRetryUntil,
		})
	}
	return out
}

// reconcile fuses registrations with persisted records inside one
// transaction. Records without a live registration are dropped; surviving
// records get their cron expression and retry delay overwritten from the
// registration.
func (s *Scheduler) reconcile(ctx context.Context) error {
	return s.env.State.Mutate(ctx, func(st *runtimestate.Storage) error {
		existing := st.CurrentState()
		now := s.env.Clock.Now()

		next := &runtimestate.State{StartTime: existing.StartTime}
		if next.StartTime.IsZero() {
			next.StartTime = now
		}
		s.mu.Lock()
		for _, t := range s.tasks {
			t.adopt(existing.Task(t.reg.Name), now)
			next.Tasks = append(next.Tasks, t.record)
		}
		s.mu.Unlock()
		st.SetState(next)
		return nil
	})
}

func (s *Scheduler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	// Callbacks are awaited, never interrupted, so the loop context is not
	// tied to Stop.
	ctx := context.Background()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
			if s.stopping.Load() {
				return
			}
		}
	}
}

// tick evaluates every task once and persists all outcome updates in a
// single transaction. Nothing due means no transaction at all.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.anythingDue() {
		return
	}
	err := s.env.State.Mutate(ctx, func(st *runtimestate.Storage) error {
		existing := st.CurrentState()
		next := &runtimestate.State{StartTime: existing.StartTime}

		s.mu.Lock()
		tasks := s.tasks
		s.mu.Unlock()

		for _, t := range tasks {
			if s.stopping.Load() {
				break
			}
			s.runTask(ctx, t)
		}

		s.mu.Lock()
		for _, t := range tasks {
			next.Tasks = append(next.Tasks, t.record)
		}
		s.mu.Unlock()
		st.SetState(next)
		return nil
	})
	if err != nil {
		s.env.Log.Error("tick persistence failed", "error", err)
	}
}

func (s *Scheduler) anythingDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.env.Clock.Now()
	for _, t := range s.tasks {
		if _, _, ok := t.due(now); ok {
			return true
		}
	}
	return false
}

func (s *Scheduler) runTask(ctx context.Context, t *task) {
	s.mu.Lock()
	now := s.env.Clock.Now()
	at, isRetry, ok := t.due(now)
	s.mu.Unlock()
	if !ok {
		return
	}

	started := time.Now()
	err := runCallback(ctx, t.reg.Callback)
	elapsed := time.Since(started)

	// Outcome timestamps use the instant the fire was decided, so a tick is
	// one atomic step on the task's timeline.
	s.mu.Lock()
	t.lastEvaluatedFire = at
	t.record.LastAttemptTime = now
	if err == nil {
		t.record.LastSuccessTime = now
		t.record.PendingRetryUntil = time.Time{}
	} else {
		t.record.LastFailureTime = now
		t.record.PendingRetryUntil = now.Add(t.reg.RetryDelay)
	}
	s.mu.Unlock()

	if err != nil {
		s.env.Log.Error("task execution failed",
			"taskName", t.reg.Name,
			"errorMessage", err.Error(),
			"fireTime", clock.FormatISO(at),
			"retryDelay", t.reg.RetryDelay,
			"retry", isRetry)
	} else {
		s.env.Log.Info("task executed",
			"taskName", t.reg.Name,
			"fireTime", clock.FormatISO(at),
			"retry", isRetry)
	}

	metrics.RecordTaskRun(t.reg.Name, err == nil, isRetry, float64(now.Unix()))
	if s.env.History != nil {
		event := history.Event{
			Task:       t.reg.Name,
			Status:     history.StatusSuccess,
			Retried:    isRetry,
			OccurredAt: now,
			Duration:   elapsed,
		}
		if err != nil {
			event.Status = history.StatusFailure
			event.Error = err.Error()
		}
		if err := s.env.History.Record(ctx, event); err != nil {
			s.env.Log.Warn("recording task history failed",
				"taskName", t.reg.Name, "errorMessage", err.Error())
		}
	}
}

// runCallback shields the loop from panicking callbacks.
func runCallback(ctx context.Context, cb func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return cb(ctx)
}
