// Package eligibility checks a prospective reservation against the
// structural booking rules.  Nothing here touches storage; both checks
// run before a transaction is opened.
package eligibility

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/space-reservation/internal/localtime"
	"github.com/iliyamo/space-reservation/internal/model"
)

// Rules are the configurable bounds applied by Validate.
type Rules struct {
	Horizon     time.Duration // latest allowed start, relative to now
	MinDuration time.Duration
	MaxDuration time.Duration
}

// DefaultRules: 14 day horizon, 60 to 180 minute bookings.
func DefaultRules() Rules {
	return Rules{
		Horizon:     14 * 24 * time.Hour,
		MinDuration: 60 * time.Minute,
		MaxDuration: 180 * time.Minute,
	}
}

// Request is the raw reservation request as received from the caller.
// Fields stay loosely typed so that malformed input produces a rule
// violation instead of a decode failure.
type Request struct {
	SpaceID       json.Number  `json:"space_id"`
	StartTime     string       `json:"start_time"`
	EndTime       string       `json:"end_time"`
	AttendeeCount *json.Number `json:"attendee_count,omitempty"`
}

// UnmarshalJSON keeps a mistyped field from failing the whole decode: a
// JSON string contributes its contents, any other value its raw text, and
// Validate then reports it as a rule violation next to the others.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw struct {
		SpaceID       json.RawMessage `json:"space_id"`
		StartTime     json.RawMessage `json:"start_time"`
		EndTime       json.RawMessage `json:"end_time"`
		AttendeeCount json.RawMessage `json:"attendee_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Request{
		SpaceID:   json.Number(looseText(raw.SpaceID)),
		StartTime: looseText(raw.StartTime),
		EndTime:   looseText(raw.EndTime),
	}
	if isPresent(raw.AttendeeCount) {
		n := json.Number(looseText(raw.AttendeeCount))
		r.AttendeeCount = &n
	}
	return nil
}

func isPresent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// looseText returns a JSON string's contents or the raw text of any other
// value.  Absent and null fields yield "".
func looseText(raw json.RawMessage) string {
	if !isPresent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// Booking is the parsed form of a valid Request.
type Booking struct {
	SpaceID       uint64
	StartAt       time.Time
	EndAt         time.Time
	AttendeeCount *int
}

// Result is the outcome of Validate.  Errors keeps rule order; Booking
// is set only when Valid.
type Result struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
	Booking *Booking `json:"-"`
}

// Validator applies Rules.
type Validator struct {
	rules Rules
}

// NewValidator returns a Validator for rules.
func NewValidator(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// Validate checks req against every rule.  Violations accumulate; a
// failing rule never hides a later one.
func (v *Validator) Validate(req Request, now time.Time) Result {
	var errs []string
	var b Booking

	if raw := strings.TrimSpace(req.SpaceID.String()); raw == "" {
		errs = append(errs, "space_id is required")
	} else if id, err := strconv.ParseUint(raw, 10, 64); err != nil || id == 0 {
		errs = append(errs, "space_id must be a positive integer")
	} else {
		b.SpaceID = id
	}

	start, startOK := parseInstant("start_time", req.StartTime, &errs)
	end, endOK := parseInstant("end_time", req.EndTime, &errs)

	if startOK && endOK && !end.After(start) {
		errs = append(errs, "end_time must be after start_time")
	}
	if startOK {
		if !start.After(now) {
			errs = append(errs, "start_time must be in the future")
		}
		if start.After(now.Add(v.rules.Horizon)) {
			errs = append(errs, fmt.Sprintf("Bookings can only be made up to %s in advance", humanDuration(v.rules.Horizon)))
		}
	}
	if startOK && endOK && end.After(start) {
		d := end.Sub(start)
		if d < v.rules.MinDuration {
			errs = append(errs, fmt.Sprintf("Booking must be at least %s", humanDuration(v.rules.MinDuration)))
		}
		if d > v.rules.MaxDuration {
			errs = append(errs, fmt.Sprintf("Booking cannot exceed %s", humanDuration(v.rules.MaxDuration)))
		}
	}

	if req.AttendeeCount != nil {
		// attendee_count is stored as INT UNSIGNED
		u, err := strconv.ParseUint(strings.TrimSpace(req.AttendeeCount.String()), 10, 32)
		if err != nil || u == 0 {
			errs = append(errs, "attendee_count must be a positive integer")
		} else {
			n := int(u)
			b.AttendeeCount = &n
		}
	}

	if len(errs) > 0 {
		return Result{Valid: false, Errors: errs}
	}
	b.StartAt, b.EndAt = start.UTC(), end.UTC()
	return Result{Valid: true, Errors: []string{}, Booking: &b}
}

func parseInstant(field, raw string, errs *[]string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*errs = append(*errs, field+" is required")
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		*errs = append(*errs, field+" must be a valid RFC 3339 timestamp")
		return time.Time{}, false
	}
	// storage keeps whole seconds; check the interval that will be stored
	return t.Truncate(time.Second), true
}

// humanDuration renders whole days or minutes, e.g. "14 days",
// "60 minutes".
func humanDuration(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		n := int(d / (24 * time.Hour))
		if n == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", n)
	}
	n := int(d / time.Minute)
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}

// HoursResult is the outcome of CheckOperatingHours.
type HoursResult struct {
	Valid   bool
	Message string
}

// CheckOperatingHours verifies that [start, end) lies inside the opening
// window of start's local day.  A day without configured hours fails
// closed.  A close of 23:59 is treated as end of day, so a booking may
// end exactly at local midnight.
func CheckOperatingHours(tz *localtime.Adapter, space model.Space, start, end time.Time) HoursResult {
	hours := space.Hours.ForWeekday(tz.Weekday(start))
	if hours == nil {
		return HoursResult{Message: "Operating hours are not configured for this day"}
	}
	startMin := tz.MinuteOfDay(start)
	endMin := tz.MinuteOfDay(end)
	// a booking that runs past local midnight ends after minute 1440
	if endDay, startDay := tz.ToLocalDate(end), tz.ToLocalDate(start); endDay != startDay {
		next, _ := localtime.AddDays(startDay, 1)
		if endDay == next {
			endMin += model.MinutesPerDay
		} else {
			endMin += 2 * model.MinutesPerDay
		}
	}
	if startMin < hours.StartMinute {
		return HoursResult{Message: fmt.Sprintf("Space opens at %s", model.FormatClock(hours.StartMinute))}
	}
	if endMin > hours.EndMinute {
		return HoursResult{Message: fmt.Sprintf("Space closes at %s", closeLabel(hours.EndMinute))}
	}
	return HoursResult{Valid: true}
}

func closeLabel(minute int) string {
	if minute >= model.MinutesPerDay {
		return "end of day"
	}
	return model.FormatClock(minute)
}
