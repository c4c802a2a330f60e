package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/volodyslav/volodyslav/internal/clock"
	"github.com/volodyslav/volodyslav/internal/cronexpr"
	"github.com/volodyslav/volodyslav/internal/runtimestate"
)

// Registration declares one recurring task. Names are unique per scheduler;
// the registration is authoritative for the cron expression and retry delay,
// so schedule edits take effect on restart regardless of persisted state.
type Registration struct {
	Name       string
	CronText   string
	Callback   func(context.Context) error
	RetryDelay time.Duration
}

// InvalidRegistrationError reports a registration rejected by Initialize.
type InvalidRegistrationError struct {
	Name   string
	Reason string
	Err    error
}

func (e *InvalidRegistrationError) Error() string {
	return fmt.Sprintf("invalid registration %q: %s", e.Name, e.Reason)
}

func (e *InvalidRegistrationError) Unwrap() error { return e.Err }

// task is a registration fused with its persisted record plus the cached
// fire cursor that prevents re-walking the cron timeline every tick.
type task struct {
	reg  Registration
	expr *cronexpr.Expression

	// lastEvaluatedFire is the most recent fire instant already accounted
	// for; cron fires at or before it are never executed again.
	lastEvaluatedFire time.Time
	record            runtimestate.TaskRecord
}

func buildTasks(regs []Registration) ([]*task, error) {
	seen := make(map[string]struct{}, len(regs))
	tasks := make([]*task, 0, len(regs))
	for _, reg := range regs {
		if reg.Name == "" {
			return nil, &InvalidRegistrationError{Name: reg.Name, Reason: "empty name"}
		}
		if _, dup := seen[reg.Name]; dup {
			return nil, &InvalidRegistrationError{Name: reg.Name, Reason: "duplicate name"}
		}
		seen[reg.Name] = struct{}{}
		if reg.Callback == nil {
			return nil, &InvalidRegistrationError{Name: reg.Name, Reason: "nil callback"}
		}
		if reg.RetryDelay < 0 {
			return nil, &InvalidRegistrationError{Name: reg.Name, Reason: "negative retry delay"}
		}
		expr, err := cronexpr.Parse(reg.CronText)
		if err != nil {
			return nil, &InvalidRegistrationError{Name: reg.Name, Reason: "unparseable cron expression", Err: err}
		}
		tasks = append(tasks, &task{reg: reg, expr: expr})
	}
	return tasks, nil
}

// adopt fuses a persisted record (may be nil) with the live registration.
// Timestamps survive; cron expression and retry delay always come from the
// registration. The fire cursor anchors at the last attempt when one is
// known, otherwise just before now so a boundary at startup fires once.
func (t *task) adopt(rec *runtimestate.TaskRecord, now time.Time) {
	t.record = runtimestate.TaskRecord{
		Name:           t.reg.Name,
		CronExpression: t.expr.String(),
		RetryDelay:     t.reg.RetryDelay,
	}
	if rec != nil {
		t.record.LastSuccessTime = rec.LastSuccessTime
		t.record.LastFailureTime = rec.LastFailureTime
		t.record.LastAttemptTime = rec.LastAttemptTime
		t.record.PendingRetryUntil = rec.PendingRetryUntil
	}
	if !t.record.LastAttemptTime.IsZero() {
		t.lastEvaluatedFire = t.record.LastAttemptTime
	} else {
		t.lastEvaluatedFire = clock.FloorMinute(now).Add(-time.Minute)
	}
}

// due decides whether the task should run now. CronDue is the most recent
// fire at or before now that is newer than the cursor; RetryDue is a pending
// retry whose deadline has passed. The earlier of the two wins and a tie
// goes to the retry.
func (t *task) due(now time.Time) (at time.Time, isRetry bool, ok bool) {
	var cronDue time.Time
	haveCron := false
	if prev, found := t.expr.PrevAtOrBefore(now); found && prev.After(t.lastEvaluatedFire) {
		cronDue = prev
		haveCron = true
	}

	var retryDue time.Time
	haveRetry := false
	if until := t.record.PendingRetryUntil; !until.IsZero() && !until.After(now) {
		retryDue = until
		haveRetry = true
	}

	switch {
	case haveCron && haveRetry:
		if !retryDue.After(cronDue) {
			return retryDue, true, true
		}
		return cronDue, false, true
	case haveRetry:
		return retryDue, true, true
	case haveCron:
		return cronDue, false, true
	default:
		return time.Time{}, false, false
	}
}
