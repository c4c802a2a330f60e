// Package clock abstracts wall-clock access so that scheduling logic can be
// driven from a fake time source in tests. All persisted timestamps are
// rendered in UTC with millisecond precision.
package clock

import (
	"strings"
	"sync"
	"time"
)

// Clock yields the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by the OS wall clock.
func System() Clock { return systemClock{} }

// Fake is a manually driven Clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set jumps the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

const isoLayout = "2006-01-02T15:04:05.000Z"

// FormatISO renders t as an ISO-8601 UTC string with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ParseISO parses an ISO-8601 timestamp. Fractional seconds are optional.
func ParseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// WeekdayName returns the lowercase English weekday name of t ("sunday" ...).
// Display only; cron expressions accept numeric days exclusively.
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// FloorMinute drops seconds and sub-second components of t.
func FloorMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
