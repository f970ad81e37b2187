// Package localtime converts between stored instants and the facility's
// local wall clock.  Every operating-hours comparison and calendar-day
// boundary goes through an Adapter so that UTC storage and wall-clock
// business rules never diverge.  The deployment serves a single facility
// in a single zone, so the zone is fixed at construction.
package localtime

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for minimal container images
)

// DateLayout is the calendar-date format used across the service.
const DateLayout = "2006-01-02"

// Adapter is bound to one facility zone.  It is safe for concurrent use.
type Adapter struct {
	loc *time.Location
}

// New returns an adapter for loc.  A nil loc means UTC.
func New(loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{loc: loc}
}

// Load resolves an IANA zone name (e.g. "Asia/Seoul").
func Load(name string) (*Adapter, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load facility timezone %q: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the facility zone.
func (a *Adapter) Location() *time.Location { return a.loc }

// ToLocalDate returns the local calendar date of t as YYYY-MM-DD.
func (a *Adapter) ToLocalDate(t time.Time) string {
	return t.In(a.loc).Format(DateLayout)
}

// ToLocalClock returns the local wall-clock hour and minute of t.
func (a *Adapter) ToLocalClock(t time.Time) (hour, minute int) {
	l := t.In(a.loc)
	return l.Hour(), l.Minute()
}

// MinuteOfDay returns the local wall-clock offset of t from local
// midnight, in the range [0, 1440).
func (a *Adapter) MinuteOfDay(t time.Time) int {
	h, m := a.ToLocalClock(t)
	return h*60 + m
}

// Weekday returns the local weekday of t.
func (a *Adapter) Weekday(t time.Time) time.Weekday {
	return t.In(a.loc).Weekday()
}

// ParseDate parses a YYYY-MM-DD date and returns local midnight of that
// day.
func (a *Adapter) ParseDate(date string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d, nil
}

// LocalWallClockToInstant converts a local date and wall-clock time into
// an absolute instant.  hour may be 24 (with minute 0) to denote the end
// of the day.  Wall-clock times that do not exist because of a DST
// transition are normalised forward by the time package.
func (a *Adapter) LocalWallClockToInstant(date string, hour, minute int) (time.Time, error) {
	d, err := a.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return time.Time{}, fmt.Errorf("invalid wall clock %02d:%02d", hour, minute)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, a.loc), nil
}

// DayBounds returns the instants of local midnight at the start of date
// and at the start of the following day.
func (a *Adapter) DayBounds(date string) (start, end time.Time, err error) {
	d, err := a.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return d, d.AddDate(0, 0, 1), nil
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.AddDate(0, 0, n).Format(DateLayout), nil
}
