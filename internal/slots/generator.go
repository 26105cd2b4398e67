// Package slots turns the date, day and time constraints of a parsed command into
// concrete one-hour meeting slots.
package slots

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"meetbook/internal/models"
)

// noon is used as the daily anchor for date enumeration; unlike midnight it exists on
// every calendar day in every zone.
const noon = models.TimeOfDay(12 * 60)

var rruleWeekdays = []struct {
	day  time.Weekday
	rule rrule.Weekday
}{
	{time.Monday, rrule.MO},
	{time.Tuesday, rrule.TU},
	{time.Wednesday, rrule.WE},
	{time.Thursday, rrule.TH},
	{time.Friday, rrule.FR},
	{time.Saturday, rrule.SA},
	{time.Sunday, rrule.SU},
}

// Config carries the defaults the generator applies when a command leaves a field empty.
type Config struct {
	// DefaultLocation is used when the command has no timezone. If nil, time.Local is used.
	DefaultLocation *time.Location
	// DefaultWindow is used when the command has no time range.
	DefaultWindow models.TimeRange
}

// Generator produces slots for parsed commands. It holds no mutable state.
type Generator struct {
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.Local
	}
	return &Generator{cfg: cfg}
}

// Generate returns the slots for cmd ordered by date, then by time.
//
// For each date in the inclusive date range whose weekday (in the command's timezone) is
// requested, blocks start at the window start and step by exactly one hour while the block
// start is before the window end. The last block may run past the window end. Inverted
// ranges and an empty day set yield no slots and no error.
func (g *Generator) Generate(cmd models.ParsedCommand) ([]models.Slot, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	window := cmd.TimeRange
	if window.IsZero() {
		window = g.cfg.DefaultWindow
	}
	from, err := models.ParseTimeOfDay(window.Start)
	if err != nil {
		return nil, &models.ValidationError{Field: "timeRange.start", Reason: err.Error()}
	}
	until, err := models.ParseTimeOfDay(window.End)
	if err != nil {
		return nil, &models.ValidationError{Field: "timeRange.end", Reason: err.Error()}
	}

	first, _ := models.ParseDate(cmd.DateRange.Start)
	last, _ := models.ParseDate(cmd.DateRange.End)
	days := cmd.Weekdays()
	if len(days) == 0 || from >= until || last.Before(first) {
		return nil, nil
	}

	loc, err := g.location(cmd.Timezone)
	if err != nil {
		return nil, err
	}

	dates, err := matchingDates(first, last, days, loc)
	if err != nil {
		return nil, err
	}

	perDay := (int(until-from) + 59) / 60
	slots := make([]models.Slot, 0, len(dates)*perDay)
	for _, d := range dates {
		var prevEnd time.Time
		for t := from; t < until; t += 60 {
			start := d.At(t, loc)
			// A start inside a spring-forward gap resolves onto a neighbouring block.
			if start.Before(prevEnd) {
				continue
			}
			prevEnd = start.Add(models.SlotLength)
			slots = append(slots, models.Slot{Start: start, End: prevEnd})
		}
	}
	return slots, nil
}

func (g *Generator) location(name string) (*time.Location, error) {
	if name == "" {
		return g.cfg.DefaultLocation, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &models.ValidationError{Field: "timezone", Reason: err.Error()}
	}
	return loc, nil
}

// matchingDates lists the dates between first and last (inclusive) whose local weekday is in days.
func matchingDates(first, last models.Date, days map[time.Weekday]bool, loc *time.Location) ([]models.Date, error) {
	var byDay []rrule.Weekday
	for _, wd := range rruleWeekdays {
		if days[wd.day] {
			byDay = append(byDay, wd.rule)
		}
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   first.At(noon, loc),
		Until:     last.At(noon, loc),
		Byweekday: byDay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build date rule: %w", err)
	}

	occurrences := rule.All()
	dates := make([]models.Date, 0, len(occurrences))
	for _, occ := range occurrences {
		local := occ.In(loc)
		d := models.DateOf(local)
		// A day removed from the zone's calendar lands on the previous date.
		if n := len(dates); n > 0 && dates[n-1] == d {
			continue
		}
		if !days[local.Weekday()] {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}
