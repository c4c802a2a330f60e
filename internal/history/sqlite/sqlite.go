// Package sqlite stores task execution history in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/volodyslav/volodyslav/internal/history"
)

// Sink writes history events into the task_history table, creating the
// schema on first use.
type Sink struct {
	db *sql.DB
}

// New opens (or creates) the database at path. "sqlite://" prefixes and
// ":memory:" are accepted.
func New(path string) (*Sink, error) {
	path = strings.TrimSpace(strings.TrimPrefix(path, "sqlite://"))
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS task_history(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TIMESTAMP NOT NULL,
			task TEXT NOT NULL,
			status TEXT NOT NULL,
			retried BOOLEAN NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_history_task ON task_history(task);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Record(ctx context.Context, e history.Event) error {
	var errText any
	if e.Error != "" {
		errText = e.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_history(occurred_at, task, status, retried, duration_ms, error)
		VALUES(?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), e.Task, e.Status, e.Retried, e.Duration.Milliseconds(), errText)
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
