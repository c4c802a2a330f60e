// Package server exposes the scheduler's status over HTTP.
// Endpoints:
//
//	GET /healthz  — liveness probe
//	GET /status   — per-task bookkeeping snapshot
//	GET /metrics  — Prometheus exposition
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/volodyslav/volodyslav/internal/metrics"
	"github.com/volodyslav/volodyslav/internal/scheduler"
)

// StatusSource yields the current task snapshot. Implemented by
// scheduler.Scheduler.
type StatusSource interface {
	Snapshot() []scheduler.TaskStatus
}

// Router provides embeddable HTTP handlers for the status API.
type Router struct {
	source StatusSource
}

// NewRouter constructs a Router over the given snapshot source.
func NewRouter(source StatusSource) *Router {
	return &Router{source: source}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router. Shut
// it down via http.Server's Shutdown or Close.
func NewServer(addr string, source StatusSource) *http.Server {
	r := NewRouter(source)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": r.source.Snapshot()})
}
