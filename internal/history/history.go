// Package history records task execution outcomes into pluggable sinks.
// Sinks are best-effort: a failing sink is logged and never disturbs the
// scheduler loop.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatusSuccess and StatusFailure are the two recorded outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one task execution outcome.
type Event struct {
	Task       string
	Status     string
	Retried    bool
	OccurredAt time.Time
	Duration   time.Duration
	Error      string
}

// Sink stores execution events.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close() error
}

// Multi fans one event out to several sinks. Record returns the first error
// after attempting every sink.
type Multi struct {
	sinks []Sink
	log   *slog.Logger
}

// NewMulti builds a fan-out sink.
func NewMulti(log *slog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: log}
}

func (m *Multi) Record(ctx context.Context, e Event) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Record(ctx, e); err != nil {
			m.log.Warn("history sink record failed", "task", e.Task, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Memory is an in-process sink that keeps events in order. Used by tests and
// as the default when no external sink is configured.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-process sink.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
