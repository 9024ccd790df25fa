// Package clock supplies the current instant, deferred callbacks and calendar
// day boundaries. Everything time-dependent takes a Clock so tests can drive
// time by hand.
package clock

import (
	"fmt"
	"time"
)

// Clock is the time source used by the scheduler and the streak engine.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable deferred callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// System is the wall clock.
type System struct{}

// Now returns the current local time.
func (System) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (System) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Calendar maps instants to calendar days in one fixed reference zone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for the given zone; nil means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// LoadCalendar resolves an IANA zone name such as "Europe/Moscow".
func LoadCalendar(name string) (Calendar, error) {
	if name == "" {
		return NewCalendar(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return NewCalendar(loc), nil
}

// Location returns the reference zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// DayOf returns the calendar day containing t in the reference zone. Days are
// represented as midnight UTC carrying that zone's year, month and day, so day
// arithmetic via AddDate never sees a DST shift.
func (c Calendar) DayOf(t time.Time) time.Time {
	y, m, d := t.In(c.Location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is DayOf(clk.Now()).
func (c Calendar) Today(clk Clock) time.Time {
	return c.DayOf(clk.Now())
}

// Format renders a day as YYYY-MM-DD.
func Format(day time.Time) string {
	return day.Format(time.DateOnly)
}

// ParseDay parses a YYYY-MM-DD day string.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
