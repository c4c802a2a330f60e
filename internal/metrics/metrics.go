// Package metrics exposes Prometheus collectors for the scheduler core.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	taskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volodyslav",
			Subsystem: "scheduler",
			Name:      "task_runs_total",
			Help:      "Number of task executions by outcome.",
		}, []string{"task", "status"},
	)
	taskRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volodyslav",
			Subsystem: "scheduler",
			Name:      "task_retries_total",
			Help:      "Number of executions fired from a pending retry.",
		}, []string{"task"},
	)
	lastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "volodyslav",
			Subsystem: "scheduler",
			Name:      "task_last_run_timestamp_seconds",
			Help:      "Unix time of the last attempt per task.",
		}, []string{"task"},
	)
	pendingRetry = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "volodyslav",
			Subsystem: "scheduler",
			Name:      "task_pending_retry",
			Help:      "1 when the task's last outcome was a failure awaiting retry.",
		}, []string{"task"},
	)
	transactionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "volodyslav",
			Subsystem: "gitstore",
			Name:      "transaction_attempts_total",
			Help:      "Git store transaction attempts by outcome.",
		}, []string{"outcome"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{taskRuns, taskRetries, lastRun, pendingRetry, transactionAttempts}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTaskRun counts one task execution and refreshes the per-task gauges.
func RecordTaskRun(task string, success bool, retried bool, at float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	taskRuns.WithLabelValues(task, status).Inc()
	if retried {
		taskRetries.WithLabelValues(task).Inc()
	}
	lastRun.WithLabelValues(task).Set(at)
	if success {
		pendingRetry.WithLabelValues(task).Set(0)
	} else {
		pendingRetry.WithLabelValues(task).Set(1)
	}
}

// RecordTransactionAttempt counts one gitstore transaction attempt.
// Outcome is "success", "push_conflict" or "error".
func RecordTransactionAttempt(outcome string) {
	transactionAttempts.WithLabelValues(outcome).Inc()
}
