package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/volodyslav/volodyslav/internal/scheduler"
)

type fakeSource struct {
	statuses []scheduler.TaskStatus
}

func (f *fakeSource) Snapshot() []scheduler.TaskStatus { return f.statuses }

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRouter(&fakeSource{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
}

func TestStatusReportsTasks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := &fakeSource{statuses: []scheduler.TaskStatus{{
		Name:            "diary",
		CronExpression:  "0 9 * * *",
		RetryDelay:      2 * time.Minute,
		LastSuccessTime: time.Date(2021, 1, 1, 9, 0, 0, 0, time.UTC),
	}}}
	h := NewRouter(src).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}

	var body struct {
		Tasks []map[string]any `json:"tasks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Tasks) != 1 || body.Tasks[0]["name"] != "diary" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if _, present := body.Tasks[0]["lastFailureTime"]; present {
		t.Fatalf("zero timestamps must be omitted: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRouter(&fakeSource{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("expected Prometheus exposition, got %q", rec.Body.String()[:min(120, rec.Body.Len())])
	}
}
