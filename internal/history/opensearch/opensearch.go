// Package opensearch indexes task execution history over the OpenSearch
// HTTP document API.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/volodyslav/volodyslav/internal/history"
)

// Sink POSTs one document per event to <baseURL>/<index>/_doc.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

// New builds a sink for the given endpoint and index.
func New(baseURL, index string) *Sink {
	return &Sink{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
	}
}

type document struct {
	OccurredAt time.Time `json:"occurred_at"`
	Task       string    `json:"task"`
	Status     string    `json:"status"`
	Retried    bool      `json:"retried"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

func (s *Sink) Record(ctx context.Context, e history.Event) error {
	doc := document{
		OccurredAt: e.OccurredAt.UTC(),
		Task:       e.Task,
		Status:     e.Status,
		Retried:    e.Retried,
		DurationMs: e.Duration.Milliseconds(),
		Error:      e.Error,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, s.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	return nil
}

func (s *Sink) Close() error { return nil }
