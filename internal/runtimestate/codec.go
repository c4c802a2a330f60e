// Package runtimestate persists the scheduler's task bookkeeping as a JSON
// document inside a git-backed repository. The document is versioned (current
// schema version 2) and written with tab indentation, tasks sorted by name.
//
// Decoding isolates per-task errors: a single corrupt task record is dropped
// with a warning while the rest of the document survives. Only a broken
// top-level structure discards the whole document.
package runtimestate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/volodyslav/volodyslav/internal/clock"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 2

// TaskRecord is the persisted bookkeeping for one registered task. Zero time
// values mean "absent".
type TaskRecord struct {
	Name              string
	CronExpression    string
	RetryDelay        time.Duration
	LastSuccessTime   time.Time
	LastFailureTime   time.Time
	LastAttemptTime   time.Time
	PendingRetryUntil time.Time
}

// State is the decoded runtime-state document.
type State struct {
	StartTime time.Time
	Tasks     []TaskRecord
}

// DefaultState returns the state written on first boot.
func DefaultState(now time.Time) *State {
	return &State{StartTime: now}
}

// Task returns the record with the given name, or nil.
func (s *State) Task(name string) *TaskRecord {
	for i := range s.Tasks {
		if s.Tasks[i].Name == name {
			return &s.Tasks[i]
		}
	}
	return nil
}

// InvalidStructureError reports a document or task record whose top-level
// shape is not what the schema requires.
type InvalidStructureError struct {
	Reason string
}

func (e *InvalidStructureError) Error() string {
	return "runtime state: invalid structure: " + e.Reason
}

// MissingFieldError reports a task record lacking a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "runtime state: task record missing field " + e.Field
}

// InvalidTypeError reports a task record field of the wrong JSON type.
type InvalidTypeError struct {
	Field  string
	Reason string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("runtime state: task field %s: %s", e.Field, e.Reason)
}

// InvalidValueError reports a task record field whose value is out of domain.
type InvalidValueError struct {
	Field  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("runtime state: task field %s: %s", e.Field, e.Reason)
}

type taskWire struct {
	Name              string `json:"name"`
	CronExpression    string `json:"cronExpression"`
	RetryDelayMs      int64  `json:"retryDelayMs"`
	LastSuccessTime   string `json:"lastSuccessTime,omitempty"`
	LastFailureTime   string `json:"lastFailureTime,omitempty"`
	LastAttemptTime   string `json:"lastAttemptTime,omitempty"`
	PendingRetryUntil string `json:"pendingRetryUntil,omitempty"`
}

type documentWire struct {
	Version   int        `json:"version"`
	StartTime string     `json:"startTime"`
	Tasks     []taskWire `json:"tasks"`
}

// Encode renders the state as the canonical on-disk document: tab-indented
// JSON with a trailing newline and tasks in ascending name order.
func Encode(s *State) (string, error) {
	tasks := make([]taskWire, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		w := taskWire{
			Name:           t.Name,
			CronExpression: t.CronExpression,
			RetryDelayMs:   t.RetryDelay.Milliseconds(),
		}
		if !t.LastSuccessTime.IsZero() {
			w.LastSuccessTime = clock.FormatISO(t.LastSuccessTime)
		}
		if !t.LastFailureTime.IsZero() {
			w.LastFailureTime = clock.FormatISO(t.LastFailureTime)
		}
		if !t.LastAttemptTime.IsZero() {
			w.LastAttemptTime = clock.FormatISO(t.LastAttemptTime)
		}
		if !t.PendingRetryUntil.IsZero() {
			w.PendingRetryUntil = clock.FormatISO(t.PendingRetryUntil)
		}
		tasks = append(tasks, w)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	doc := documentWire{
		Version:   CurrentVersion,
		StartTime: clock.FormatISO(s.StartTime),
		Tasks:     tasks,
	}
	b, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// Decode parses a runtime-state document. Per-task decode failures are
// returned in taskErrors and the offending records dropped; the error return
// is non-nil only when the top-level structure is unusable. Documents with
// version < 2 are upgraded in place with one informational log line.
func Decode(data string, log *slog.Logger) (*State, []error, error) {
	var doc struct {
		Version   *int              `json:"version"`
		StartTime *string           `json:"startTime"`
		Tasks     []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, nil, &InvalidStructureError{Reason: err.Error()}
	}
	if doc.Version == nil {
		return nil, nil, &InvalidStructureError{Reason: "missing version"}
	}
	if doc.StartTime == nil {
		return nil, nil, &InvalidStructureError{Reason: "missing startTime"}
	}
	startTime, err := clock.ParseISO(*doc.StartTime)
	if err != nil {
		return nil, nil, &InvalidStructureError{Reason: "unparseable startTime: " + err.Error()}
	}
	if *doc.Version < CurrentVersion {
		log.Info("migrating runtime state document",
			"fromVersion", *doc.Version, "toVersion", CurrentVersion)
	}

	state := &State{StartTime: startTime}
	var taskErrors []error
	for _, raw := range doc.Tasks {
		rec, err := decodeTask(raw)
		if err != nil {
			taskErrors = append(taskErrors, err)
			continue
		}
		state.Tasks = append(state.Tasks, rec)
	}
	return state, taskErrors, nil
}

func decodeTask(raw json.RawMessage) (TaskRecord, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return TaskRecord{}, &InvalidStructureError{Reason: "task record is not an object"}
	}

	var rec TaskRecord

	name, ok := fields["name"]
	if !ok {
		return TaskRecord{}, &MissingFieldError{Field: "name"}
	}
	rec.Name, ok = name.(string)
	if !ok {
		return TaskRecord{}, &InvalidTypeError{Field: "name", Reason: "expected string"}
	}

	delay, ok := fields["retryDelayMs"]
	if !ok {
		return TaskRecord{}, &MissingFieldError{Field: "retryDelayMs"}
	}
	ms, ok := delay.(float64)
	if !ok {
		return TaskRecord{}, &InvalidTypeError{Field: "retryDelayMs", Reason: "expected number"}
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms != math.Trunc(ms) {
		return TaskRecord{}, &InvalidValueError{Field: "retryDelayMs", Reason: "expected whole milliseconds"}
	}
	if ms < 0 {
		return TaskRecord{}, &InvalidValueError{Field: "retryDelayMs", Reason: "must be non-negative"}
	}
	rec.RetryDelay = time.Duration(ms) * time.Millisecond

	if expr, ok := fields["cronExpression"]; ok {
		rec.CronExpression, ok = expr.(string)
		if !ok {
			return TaskRecord{}, &InvalidTypeError{Field: "cronExpression", Reason: "expected string"}
		}
	}

	for field, dst := range map[string]*time.Time{
		"lastSuccessTime":   &rec.LastSuccessTime,
		"lastFailureTime":   &rec.LastFailureTime,
		"lastAttemptTime":   &rec.LastAttemptTime,
		"pendingRetryUntil": &rec.PendingRetryUntil,
	} {
		v, ok := fields[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return TaskRecord{}, &InvalidTypeError{Field: field, Reason: "expected ISO string"}
		}
		t, err := clock.ParseISO(s)
		if err != nil {
			return TaskRecord{}, &InvalidValueError{Field: field, Reason: "unparseable timestamp: " + err.Error()}
		}
		*dst = t
	}

	return rec, nil
}
