package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/volodyslav/volodyslav/internal/history"
)

func TestRecordAndQueryBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	events := []history.Event{
		{Task: "diary", Status: history.StatusSuccess, OccurredAt: time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC), Duration: 120 * time.Millisecond},
		{Task: "diary", Status: history.StatusFailure, Retried: true, OccurredAt: time.Date(2021, 1, 1, 11, 0, 0, 0, time.UTC), Error: "network down"},
	}
	for _, e := range events {
		if err := sink.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	var count int
	if err := sink.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_history WHERE task = ?`, "diary").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}

	var status string
	var errText *string
	if err := sink.db.QueryRowContext(ctx,
		`SELECT status, error FROM task_history WHERE retried = true`).Scan(&status, &errText); err != nil {
		t.Fatalf("query retried row: %v", err)
	}
	if status != history.StatusFailure || errText == nil || *errText != "network down" {
		t.Fatalf("row drifted: %s %v", status, errText)
	}
}

func TestNewAcceptsSQLitePrefix(t *testing.T) {
	sink, err := New("sqlite://" + filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatalf("open with prefix: %v", err)
	}
	_ = sink.Close()
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("empty path must be rejected")
	}
}
