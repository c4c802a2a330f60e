package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	if !f.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, f.Now())
	}
	f.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if !f.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, f.Now())
	}
}

func TestISORoundTrip(t *testing.T) {
	in := time.Date(2021, 6, 15, 10, 30, 0, 250*int(time.Millisecond), time.UTC)
	s := FormatISO(in)
	if s != "2021-06-15T10:30:00.250Z" {
		t.Fatalf("unexpected ISO form: %s", s)
	}
	out, err := ParseISO(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("round trip mismatch: %v != %v", out, in)
	}
}

func TestParseISOWithoutFraction(t *testing.T) {
	out, err := ParseISO("2021-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Minute() != 0 || out.Year() != 2021 {
		t.Fatalf("unexpected parse result: %v", out)
	}
}

func TestWeekdayName(t *testing.T) {
	// 2021-01-03 was a Sunday.
	d := time.Date(2021, 1, 3, 12, 0, 0, 0, time.UTC)
	if got := WeekdayName(d); got != "sunday" {
		t.Fatalf("expected sunday, got %s", got)
	}
}

func TestFloorMinute(t *testing.T) {
	d := time.Date(2021, 1, 1, 10, 30, 45, 123, time.UTC)
	got := FloorMinute(d)
	want := time.Date(2021, 1, 1, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSystemClockMovesForward(t *testing.T) {
	c := System()
	a := c.Now()
	b := c.Now()
	if b.Before(a) {
		t.Fatalf("system clock went backwards: %v then %v", a, b)
	}
}
