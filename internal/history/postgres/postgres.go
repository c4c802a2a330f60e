// Package postgres stores task execution history in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/volodyslav/volodyslav/internal/history"
)

// Sink writes history events into the task_history table.
type Sink struct {
	db *sql.DB
}

// New connects using a postgres://... DSN and creates the schema if missing.
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty PostgreSQL DSN")
	}
	db, err := sql.Open("pgx", dsn)
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
	stmt := `CREATE TABLE IF NOT EXISTS task_history(
		id BIGSERIAL PRIMARY KEY,
		occurred_at TIMESTAMPTZ NOT NULL,
		task TEXT NOT NULL,
		status TEXT NOT NULL,
		retried BOOLEAN NOT NULL,
		duration_ms BIGINT NOT NULL,
		error TEXT NULL
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Sink) Record(ctx context.Context, e history.Event) error {
	var errText any
	if e.Error != "" {
		errText = e.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_history(occurred_at, task, status, retried, duration_ms, error)
		VALUES($1, $2, $3, $4, $5, $6);`,
		e.OccurredAt.UTC(), e.Task, e.Status, e.Retried, e.Duration.Milliseconds(), errText)
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
