// Package slots computes the fixed-granularity availability grid of a
// space.  Slots are derived on demand and never stored.
package slots

import (
	"fmt"

	"github.com/iliyamo/space-reservation/internal/localtime"
	"github.com/iliyamo/space-reservation/internal/model"
)

// GranularityMinutes is the width of every slot.  It is not configurable
// per call.
const GranularityMinutes = 15

// Slot is one bucket of a day's grid in local wall-clock time.
type Slot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// DaySlots is the grid for one local calendar date.  A closed day has
// Closed set and no slots.
type DaySlots struct {
	Date   string `json:"date"`
	Closed bool   `json:"closed"`
	Slots  []Slot `json:"slots"`
}

// Calculator builds slot grids in the facility's local time.
type Calculator struct {
	tz *localtime.Adapter
}

// NewCalculator returns a Calculator bound to the facility adapter.
func NewCalculator(tz *localtime.Adapter) *Calculator {
	return &Calculator{tz: tz}
}

// ComputeDaySlots returns the grid for day (YYYY-MM-DD).  Only confirmed
// reservations mark slots unavailable, and only for the part of their
// interval that falls inside day's local wall clock.  A space under
// maintenance has every slot unavailable.
func (c *Calculator) ComputeDaySlots(space model.Space, day string, reservations []model.Reservation) (DaySlots, error) {
	midnight, err := c.tz.ParseDate(day)
	if err != nil {
		return DaySlots{}, err
	}
	out := DaySlots{Date: day, Slots: []Slot{}}

	hours := space.Hours.ForWeekday(midnight.Weekday())
	if hours == nil || hours.EndMinute <= hours.StartMinute {
		out.Closed = true
		return out, nil
	}

	busy := c.busyIntervals(day, reservations)
	maintenance := space.Status == model.SpaceMaintenance

	for m := hours.StartMinute; m+GranularityMinutes <= hours.EndMinute; m += GranularityMinutes {
		end := m + GranularityMinutes
		available := !maintenance
		if available {
			for _, b := range busy {
				if b.start < end && b.end > m {
					available = false
					break
				}
			}
		}
		out.Slots = append(out.Slots, Slot{
			Start:     model.FormatClock(m),
			End:       model.FormatClock(end),
			Available: available,
		})
	}
	return out, nil
}

// ComputeRange applies ComputeDaySlots to every date in the inclusive
// range [startDate, endDate].  reservations should cover the whole range;
// each day picks out what concerns it.
func (c *Calculator) ComputeRange(space model.Space, startDate, endDate string, reservations []model.Reservation) ([]DaySlots, error) {
	first, err := c.tz.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	last, err := c.tz.ParseDate(endDate)
	if err != nil {
		return nil, err
	}
	if last.Before(first) {
		return nil, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}

	var days []DaySlots
	for day := startDate; day <= endDate; {
		ds, err := c.ComputeDaySlots(space, day, reservations)
		if err != nil {
			return nil, err
		}
		days = append(days, ds)
		if day, err = localtime.AddDays(day, 1); err != nil {
			return nil, err
		}
	}
	return days, nil
}

type interval struct{ start, end int }

// busyIntervals clips each confirmed reservation to day and expresses it
// as local minute offsets.  Working in wall-clock minutes rather than
// instants keeps DST days consistent with the operating hours.
func (c *Calculator) busyIntervals(day string, reservations []model.Reservation) []interval {
	var out []interval
	for _, r := range reservations {
		if r.Status != model.StatusConfirmed {
			continue
		}
		startDate := c.tz.ToLocalDate(r.StartAt)
		endDate := c.tz.ToLocalDate(r.EndAt)
		if startDate > day || endDate < day {
			continue
		}
		start := 0
		if startDate == day {
			start = c.tz.MinuteOfDay(r.StartAt)
		}
		end := model.MinutesPerDay
		if endDate == day {
			end = c.tz.MinuteOfDay(r.EndAt)
		}
		if end > start {
			out = append(out, interval{start: start, end: end})
		}
	}
	return out
}
