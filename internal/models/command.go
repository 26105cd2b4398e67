package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var weekdayCodes = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

// ParseWeekday maps a two-letter day code (MO..SU) to a time.Weekday.
func ParseWeekday(code string) (time.Weekday, bool) {
	wd, ok := weekdayCodes[code]
	return wd, ok
}

// TimeRange is a wall-clock window, both ends in 24-hour "HH:MM".
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// IsZero reports whether neither end of the window was supplied.
func (r TimeRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// DateRange is an inclusive range of "YYYY-MM-DD" calendar dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ParsedCommand is the structured form of a scheduling request, as produced by the
// command normalizer.
type ParsedCommand struct {
	People     []string  `json:"people"`
	DaysOfWeek []string  `json:"daysOfWeek"`
	TimeRange  TimeRange `json:"timeRange"`
	DateRange  DateRange `json:"dateRange"`
	Timezone   string    `json:"timezone"`
}

// Validate checks the shape of the command. Inverted ranges and an empty day set are
// well-formed: they simply produce no slots.
func (c ParsedCommand) Validate() error {
	for _, code := range c.DaysOfWeek {
		if _, ok := ParseWeekday(code); !ok {
			return invalid("daysOfWeek", "unknown day code %q", code)
		}
	}
	if !c.TimeRange.IsZero() {
		if _, err := ParseTimeOfDay(c.TimeRange.Start); err != nil {
			return invalid("timeRange.start", "%v", err)
		}
		if _, err := ParseTimeOfDay(c.TimeRange.End); err != nil {
			return invalid("timeRange.end", "%v", err)
		}
	}
	if _, err := ParseDate(c.DateRange.Start); err != nil {
		return invalid("dateRange.start", "%v", err)
	}
	if _, err := ParseDate(c.DateRange.End); err != nil {
		return invalid("dateRange.end", "%v", err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return invalid("timezone", "%v", err)
		}
	}
	return nil
}

// Weekdays returns the set of requested weekdays. Unknown codes are skipped.
func (c ParsedCommand) Weekdays() map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, len(c.DaysOfWeek))
	for _, code := range c.DaysOfWeek {
		if wd, ok := ParseWeekday(code); ok {
			set[wd] = true
		}
	}
	return set
}

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (or "H:MM") in 24-hour form.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return TimeOfDay(hour*60 + minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Date is a calendar date without a timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a "YYYY-MM-DD" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// At returns the instant of the given wall-clock time on d in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour(), tod.Minute(), 0, 0, loc)
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}
