package daywindow

import (
	"fmt"
	"time"
)

// Window is the single practice-day policy for the whole service. Every
// component that needs a day key goes through the same Window value;
// nothing else is allowed to do its own day-boundary math.
type Window struct {
	loc *time.Location
}

// Load builds a Window for an IANA zone name ("Asia/Kolkata", "UTC", ...).
func Load(zone string) (Window, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Window{}, fmt.Errorf("load practice timezone %q: %w", zone, err)
	}
	return Window{loc: loc}, nil
}

// MustLoad is Load for static zone names in tests and wiring code.
func MustLoad(zone string) Window {
	w, err := Load(zone)
	if err != nil {
		panic(err)
	}
	return w
}

// Location exposes the zone for callers that schedule by wall clock
// (the daily cron trigger).
func (w Window) Location() *time.Location {
	return w.loc
}

// Day normalizes an instant to its practice day: the calendar date the
// instant falls on in the configured zone, represented as midnight UTC.
// Two instants map to the same Day iff they share a zoned calendar day,
// and the result compares with plain Equal and round-trips through BSON
// without drift.
func (w Window) Day(t time.Time) time.Time {
	y, m, d := t.In(w.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is Day(now).
func (w Window) Today() time.Time {
	return w.Day(time.Now())
}

// AddDays moves a practice day forward or backward by whole days.
// Day values are zone-independent, so this is plain date arithmetic.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// SameDay reports whether two practice-day values are the same day.
func SameDay(a, b time.Time) bool {
	return a.Equal(b)
}
