package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SpaceStatus is the administrative state of a space.
type SpaceStatus string

const (
	SpaceAvailable   SpaceStatus = "AVAILABLE"
	SpaceMaintenance SpaceStatus = "MAINTENANCE"
	SpaceDeleted     SpaceStatus = "DELETED"
)

// Valid reports whether s is one of the known statuses.
func (s SpaceStatus) Valid() bool {
	switch s {
	case SpaceAvailable, SpaceMaintenance, SpaceDeleted:
		return true
	}
	return false
}

// MinutesPerDay is the exclusive upper bound of a minute-of-day offset.
const MinutesPerDay = 24 * 60

// ClockRange is an opening window expressed as minute offsets from local
// midnight.  EndMinute may be MinutesPerDay, meaning the space stays open
// through the end of the day.
type ClockRange struct {
	StartMinute int
	EndMinute   int
}

// Contains reports whether [start, end) lies within the range.
func (r ClockRange) Contains(start, end int) bool {
	return start >= r.StartMinute && end <= r.EndMinute
}

// String formats the range as "HH:MM-HH:MM".
func (r ClockRange) String() string {
	return FormatClock(r.StartMinute) + "-" + FormatClock(r.EndMinute)
}

// OperatingHours holds the weekday and weekend opening windows of a
// space.  A nil window means the space is closed on those days.
type OperatingHours struct {
	Weekday *ClockRange
	Weekend *ClockRange
}

// ForWeekday selects the window that applies to the given local weekday.
func (h OperatingHours) ForWeekday(d time.Weekday) *ClockRange {
	if d == time.Saturday || d == time.Sunday {
		return h.Weekend
	}
	return h.Weekday
}

// Space is a bookable physical resource.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name.
//  Capacity  – maximum number of attendees.
//  Status    – AVAILABLE, MAINTENANCE or DELETED.
//  Hours     – weekday/weekend opening windows, parsed once at the
//              storage boundary.
type Space struct {
	ID        uint64         // spaces.id
	Name      string         // spaces.name
	Capacity  uint32         // spaces.capacity
	Status    SpaceStatus    // spaces.status
	Hours     OperatingHours // spaces.weekday_open .. weekend_close
	CreatedAt time.Time      // spaces.created_at
	UpdatedAt time.Time      // spaces.updated_at
}

// ParseClock parses "HH:MM" into a minute-of-day offset.  "23:59" and
// "24:00" both mean end of day and yield MinutesPerDay; this is the only
// place the legacy 23:59 convention is interpreted.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	// TIME columns come back as HH:MM:SS
	if len(s) == 8 && s[5] == ':' {
		s = s[:5]
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	if (h == 23 && m == 59) || (h == 24 && m == 0) {
		return MinutesPerDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders a minute-of-day offset as "HH:MM".  MinutesPerDay
// is rendered as "24:00".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseClockRange builds a ClockRange from optional open/close strings.
// Either side missing yields nil (closed).
func ParseClockRange(open, close *string) (*ClockRange, error) {
	if open == nil || close == nil || strings.TrimSpace(*open) == "" || strings.TrimSpace(*close) == "" {
		return nil, nil
	}
	start, err := ParseClock(*open)
	if err != nil {
		return nil, err
	}
	end, err := ParseClock(*close)
	if err != nil {
		return nil, err
	}
	if start >= MinutesPerDay {
		return nil, fmt.Errorf("opening time %q is end of day", *open)
	}
	if end <= start {
		return nil, fmt.Errorf("closing time %q is not after opening time %q", *close, *open)
	}
	return &ClockRange{StartMinute: start, EndMinute: end}, nil
}
