// Package cronexpr parses and evaluates five-field cron expressions with
// minute resolution. Fields are minute, hour, day-of-month, month and
// day-of-week (0 = Sunday, numeric only; names are deliberately rejected).
//
// Matching follows the POSIX rule for the day fields: when both day-of-month
// and day-of-week are restricted, a time matches if EITHER does; when exactly
// one is restricted, that one must match.
package cronexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvalidExpressionError reports a malformed cron expression.
type InvalidExpressionError struct {
	Field  string
	Reason string
}

func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid cron expression: field %s: %s", e.Field, e.Reason)
}

// ErrNoFireWithinHorizon is returned by NextAfter when no matching time
// exists within the four-year look-ahead. Guards against unsatisfiable
// combinations such as "0 0 31 2 *".
var ErrNoFireWithinHorizon = errors.New("no matching time within the four-year horizon")

// horizonYears bounds the next/previous fire walks.
const horizonYears = 4

type fieldSpec struct {
	name string
	lo   int
	hi   int
}

var (
	minuteSpec = fieldSpec{name: "minute", lo: 0, hi: 59}
	hourSpec   = fieldSpec{name: "hour", lo: 0, hi: 23}
	domSpec    = fieldSpec{name: "day-of-month", lo: 1, hi: 31}
	monthSpec  = fieldSpec{name: "month", lo: 1, hi: 12}
	dowSpec    = fieldSpec{name: "day-of-week", lo: 0, hi: 6}
)

// field is the normalized form of one expression field: either a wildcard or
// a sorted, deduplicated list of allowed values.
type field struct {
	wildcard bool
	values   []int
}

func (f field) matches(v int) bool {
	if f.wildcard {
		return true
	}
	for _, x := range f.values {
		if x == v {
			return true
		}
		if x > v {
			return false
		}
	}
	return false
}

// Expression is a parsed cron expression. The original text is retained for
// logging and registration comparison.
type Expression struct {
	text       string
	minute     field
	hour       field
	dayOfMonth field
	month      field
	dayOfWeek  field
}

// Parse parses a five-field cron expression.
func Parse(text string) (*Expression, error) {
	parts := strings.Fields(text)
	if len(parts) != 5 {
		return nil, &InvalidExpressionError{
			Field:  "expression",
			Reason: fmt.Sprintf("expected 5 fields, got %d", len(parts)),
		}
	}

	e := &Expression{text: strings.Join(parts, " ")}
	var err error
	if e.minute, err = parseField(parts[0], minuteSpec); err != nil {
		return nil, err
	}
	if e.hour, err = parseField(parts[1], hourSpec); err != nil {
		return nil, err
	}
	if e.dayOfMonth, err = parseField(parts[2], domSpec); err != nil {
		return nil, err
	}
	if e.month, err = parseField(parts[3], monthSpec); err != nil {
		return nil, err
	}
	if e.dayOfWeek, err = parseField(parts[4], dowSpec); err != nil {
		return nil, err
	}
	return e, nil
}

// String returns the original expression text with canonical whitespace.
func (e *Expression) String() string { return e.text }

func parseField(token string, spec fieldSpec) (field, error) {
	seen := make([]bool, spec.hi-spec.lo+1)

	for _, part := range strings.Split(token, ",") {
		if part == "" {
			return field{}, &InvalidExpressionError{Field: spec.name, Reason: "empty list element"}
		}
		lo, hi, step, err := parseRange(part, spec)
		if err != nil {
			return field{}, err
		}
		for v := lo; v <= hi; v += step {
			seen[v-spec.lo] = true
		}
	}

	values := make([]int, 0, len(seen))
	for i, ok := range seen {
		if ok {
			values = append(values, spec.lo+i)
		}
	}
	if len(values) == 0 {
		return field{}, &InvalidExpressionError{Field: spec.name, Reason: "no values"}
	}
	// Full coverage collapses to wildcard for fast matching.
	if len(values) == spec.hi-spec.lo+1 {
		return field{wildcard: true}, nil
	}
	return field{values: values}, nil
}

// parseRange handles "*", "N", "A-B", optionally followed by "/S".
func parseRange(part string, spec fieldSpec) (lo, hi, step int, err error) {
	step = 1
	base := part
	if i := strings.IndexByte(part, '/'); i >= 0 {
		base = part[:i]
		stepStr := part[i+1:]
		step, err = strconv.Atoi(stepStr)
		if err != nil {
			return 0, 0, 0, &InvalidExpressionError{Field: spec.name, Reason: fmt.Sprintf("unparseable step %q", stepStr)}
		}
		if step < 1 {
			return 0, 0, 0, &InvalidExpressionError{Field: spec.name, Reason: fmt.Sprintf("step must be >= 1, got %d", step)}
		}
	}

	switch {
	case base == "*":
		return spec.lo, spec.hi, step, nil
	case strings.Contains(base, "-"):
		bounds := strings.SplitN(base, "-", 2)
		a, err := parseValue(bounds[0], spec)
		if err != nil {
			return 0, 0, 0, err
		}
		b, err := parseValue(bounds[1], spec)
		if err != nil {
			return 0, 0, 0, err
		}
		if a > b {
			return 0, 0, 0, &InvalidExpressionError{Field: spec.name, Reason: fmt.Sprintf("inverted range %d-%d", a, b)}
		}
		return a, b, step, nil
	default:
		v, err := parseValue(base, spec)
		if err != nil {
			return 0, 0, 0, err
		}
		return v, v, step, nil
	}
}

func parseValue(s string, spec fieldSpec) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &InvalidExpressionError{Field: spec.name, Reason: fmt.Sprintf("unparseable value %q", s)}
	}
	if v < spec.lo || v > spec.hi {
		return 0, &InvalidExpressionError{
			Field:  spec.name,
			Reason: fmt.Sprintf("value %d out of range %d-%d", v, spec.lo, spec.hi),
		}
	}
	return v, nil
}

// Matches reports whether t satisfies the expression. Seconds are ignored.
func (e *Expression) Matches(t time.Time) bool {
	if !e.minute.matches(t.Minute()) || !e.hour.matches(t.Hour()) || !e.month.matches(int(t.Month())) {
		return false
	}
	return e.dayMatches(t)
}

// dayMatches applies the POSIX day-of-month/day-of-week disjunction.
func (e *Expression) dayMatches(t time.Time) bool {
	dom := e.dayOfMonth.matches(t.Day())
	dow := e.dayOfWeek.matches(int(t.Weekday()))
	if !e.dayOfMonth.wildcard && !e.dayOfWeek.wildcard {
		return dom || dow
	}
	return dom && dow
}

// NextAfter returns the smallest time strictly after t (at minute
// resolution; seconds of t are floored) that matches the expression.
func (e *Expression) NextAfter(t time.Time) (time.Time, error) {
	cur := floorMinute(t).Add(time.Minute)
	limit := cur.AddDate(horizonYears, 0, 0)

	for cur.Before(limit) {
		switch {
		case !e.month.matches(int(cur.Month())):
			// First minute of the next month.
			cur = time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, cur.Location()).AddDate(0, 1, 0)
		case !e.dayMatches(cur):
			cur = time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, cur.Location()).AddDate(0, 0, 1)
		case !e.hour.matches(cur.Hour()):
			cur = time.Date(cur.Year(), cur.Month(), cur.Day(), cur.Hour(), 0, 0, 0, cur.Location()).Add(time.Hour)
		case !e.minute.matches(cur.Minute()):
			cur = cur.Add(time.Minute)
		default:
			return cur, nil
		}
	}
	return time.Time{}, ErrNoFireWithinHorizon
}

// PrevAtOrBefore returns the largest matching time at or before t (minute
// resolution), or ok=false when none exists within the four-year look-back.
// The scheduler uses it to find the most recent completed cron boundary.
func (e *Expression) PrevAtOrBefore(t time.Time) (time.Time, bool) {
	cur := floorMinute(t)
	limit := cur.AddDate(-horizonYears, 0, 0)

	for cur.After(limit) {
		switch {
		case !e.month.matches(int(cur.Month())):
			// Last minute of the previous month.
			cur = time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, cur.Location()).Add(-time.Minute)
		case !e.dayMatches(cur):
			cur = time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, cur.Location()).Add(-time.Minute)
		case !e.hour.matches(cur.Hour()):
			cur = time.Date(cur.Year(), cur.Month(), cur.Day(), cur.Hour(), 0, 0, 0, cur.Location()).Add(-time.Minute)
		case !e.minute.matches(cur.Minute()):
			cur = cur.Add(-time.Minute)
		default:
			return cur, true
		}
	}
	return time.Time{}, false
}

func floorMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
