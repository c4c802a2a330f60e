// Package clickhouse stores task execution history in ClickHouse using the
// official native client.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/volodyslav/volodyslav/internal/history"
)

// DefaultTable is used when the DSN names no table.
const DefaultTable = "task_history"

// Sink writes history events over the ClickHouse native protocol.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to addr ("host:port") and verifies the connection.
func New(addr, table string) (*Sink, error) {
	if table == "" {
		table = DefaultTable
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping ClickHouse: %w", err)
	}
	s := &Sink{conn: conn, table: table}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			occurred_at DateTime64(3),
			task String,
			status String,
			retried Bool,
			duration_ms Int64,
			error Nullable(String)
		) ENGINE = MergeTree() ORDER BY (task, occurred_at);`)
}

func (s *Sink) Record(ctx context.Context, e history.Event) error {
	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (occurred_at, task, status, retried, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`,
		s.table)
	if err := s.conn.Exec(ctx, query,
		e.OccurredAt.UTC(), e.Task, e.Status, e.Retried, e.Duration.Milliseconds(), errText); err != nil {
		return fmt.Errorf("insert into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
