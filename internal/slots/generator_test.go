package slots

import (
	"errors"
	"testing"
	"time"

	"meetbook/internal/models"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func newTestGenerator(t *testing.T) *Generator {
	return NewGenerator(Config{
		DefaultLocation: mustLoad(t, "America/Toronto"),
		DefaultWindow:   models.TimeRange{Start: "09:00", End: "17:00"},
	})
}

func TestGenerateMondayWednesday(t *testing.T) {
	g := newTestGenerator(t)
	cmd := models.ParsedCommand{
		DaysOfWeek: []string{"MO", "WE"},
		TimeRange:  models.TimeRange{Start: "10:00", End: "12:00"},
		DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-03"},
		Timezone:   "America/Toronto",
	}

	got, err := g.Generate(cmd)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// America/Toronto is UTC-5 in December.
	want := []time.Time{
		time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 1, 16, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 3, 15, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 3, 16, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(got), got)
	}
	for i, w := range want {
		if !got[i].Start.Equal(w) {
			t.Errorf("slot %d: start %s, want %s", i, got[i].Start.UTC(), w)
		}
		if !got[i].End.Equal(w.Add(time.Hour)) {
			t.Errorf("slot %d: end %s, want %s", i, got[i].End.UTC(), w.Add(time.Hour))
		}
	}
}

func TestGenerateEmpty(t *testing.T) {
	g := newTestGenerator(t)
	base := models.ParsedCommand{
		DaysOfWeek: []string{"MO", "TU", "WE", "TH", "FR"},
		TimeRange:  models.TimeRange{Start: "10:00", End: "12:00"},
		DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-05"},
		Timezone:   "Europe/Berlin",
	}

	tests := []struct {
		name   string
		mutate func(c *models.ParsedCommand)
	}{
		{"inverted date range", func(c *models.ParsedCommand) {
			c.DateRange = models.DateRange{Start: "2025-12-05", End: "2025-12-01"}
		}},
		{"inverted time range", func(c *models.ParsedCommand) {
			c.TimeRange = models.TimeRange{Start: "12:00", End: "10:00"}
		}},
		{"degenerate time range", func(c *models.ParsedCommand) {
			c.TimeRange = models.TimeRange{Start: "10:00", End: "10:00"}
		}},
		{"no days", func(c *models.ParsedCommand) { c.DaysOfWeek = nil }},
		{"no matching day", func(c *models.ParsedCommand) { c.DaysOfWeek = []string{"SA", "SU"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := base
			tt.mutate(&cmd)
			got, err := g.Generate(cmd)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("expected no slots, got %v", got)
			}
		})
	}
}

func TestGenerateWeekdayAndLengthInvariants(t *testing.T) {
	g := newTestGenerator(t)
	cmd := models.ParsedCommand{
		DaysOfWeek: []string{"TU", "FR", "SU"},
		TimeRange:  models.TimeRange{Start: "00:30", End: "03:45"},
		DateRange:  models.DateRange{Start: "2025-02-20", End: "2025-04-15"},
		Timezone:   "America/New_York",
	}
	loc := mustLoad(t, "America/New_York")
	days := cmd.Weekdays()

	got, err := g.Generate(cmd)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected slots")
	}
	for i, s := range got {
		if d := s.End.Sub(s.Start); d != time.Hour {
			t.Errorf("slot %d lasts %s", i, d)
		}
		if wd := s.Start.In(loc).Weekday(); !days[wd] {
			t.Errorf("slot %d falls on %s", i, wd)
		}
		if i > 0 && !got[i-1].Start.Before(s.Start) {
			t.Errorf("slot %d out of order", i)
		}
	}
}

func TestGenerateAlignsToWindowStart(t *testing.T) {
	g := newTestGenerator(t)
	loc := mustLoad(t, "UTC")

	tests := []struct {
		name   string
		window models.TimeRange
		starts []string
	}{
		{"half past start", models.TimeRange{Start: "10:30", End: "12:00"}, []string{"10:30", "11:30"}},
		{"window not a multiple of an hour", models.TimeRange{Start: "10:00", End: "11:30"}, []string{"10:00", "11:00"}},
		{"short window", models.TimeRange{Start: "10:00", End: "10:15"}, []string{"10:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Generate(models.ParsedCommand{
				DaysOfWeek: []string{"MO"},
				TimeRange:  tt.window,
				DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-01"},
				Timezone:   "UTC",
			})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(got) != len(tt.starts) {
				t.Fatalf("expected %d slots, got %d", len(tt.starts), len(got))
			}
			for i, s := range tt.starts {
				if hm := got[i].Start.In(loc).Format("15:04"); hm != s {
					t.Errorf("slot %d starts at %s, want %s", i, hm, s)
				}
			}
		})
	}
}

func TestGenerateAcrossDaylightSavingChange(t *testing.T) {
	g := newTestGenerator(t)
	loc := mustLoad(t, "America/Toronto")

	// Clocks move forward on Sunday 2025-03-09 at 02:00.
	got, err := g.Generate(models.ParsedCommand{
		DaysOfWeek: []string{"SA", "SU"},
		TimeRange:  models.TimeRange{Start: "10:00", End: "11:00"},
		DateRange:  models.DateRange{Start: "2025-03-08", End: "2025-03-09"},
		Timezone:   "America/Toronto",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got))
	}
	for i, s := range got {
		if hm := s.Start.In(loc).Format("15:04"); hm != "10:00" {
			t.Errorf("slot %d starts at local %s", i, hm)
		}
	}
	if !got[0].Start.Equal(time.Date(2025, 3, 8, 15, 0, 0, 0, time.UTC)) {
		t.Errorf("standard time slot at %s", got[0].Start.UTC())
	}
	if !got[1].Start.Equal(time.Date(2025, 3, 9, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("daylight time slot at %s", got[1].Start.UTC())
	}
}

func TestGenerateDefaults(t *testing.T) {
	g := newTestGenerator(t)
	loc := mustLoad(t, "America/Toronto")

	got, err := g.Generate(models.ParsedCommand{
		DaysOfWeek: []string{"MO"},
		DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-01"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 slots from the default window, got %d", len(got))
	}
	if hm := got[0].Start.In(loc).Format("15:04"); hm != "09:00" {
		t.Errorf("first slot starts at %s", hm)
	}
	if !got[0].Start.Equal(time.Date(2025, 12, 1, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("default location not applied: %s", got[0].Start.UTC())
	}
}

func TestGenerateRejectsMalformedCommand(t *testing.T) {
	g := newTestGenerator(t)
	_, err := g.Generate(models.ParsedCommand{
		DaysOfWeek: []string{"MONDAY"},
		TimeRange:  models.TimeRange{Start: "10:00", End: "12:00"},
		DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-03"},
	})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "daysOfWeek" {
		t.Fatalf("unexpected field %q", verr.Field)
	}
}

func TestGenerateWithoutDefaultWindow(t *testing.T) {
	g := NewGenerator(Config{DefaultLocation: time.UTC})
	_, err := g.Generate(models.ParsedCommand{
		DaysOfWeek: []string{"MO"},
		DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-01"},
	})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGenerateSkipsBlocksInDaylightSavingGap(t *testing.T) {
	g := newTestGenerator(t)

	// 02:00 does not exist in Toronto on 2025-03-09.
	got, err := g.Generate(models.ParsedCommand{
		DaysOfWeek: []string{"SU"},
		TimeRange:  models.TimeRange{Start: "01:00", End: "04:00"},
		DateRange:  models.DateRange{Start: "2025-03-09", End: "2025-03-09"},
		Timezone:   "America/Toronto",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d: %v", len(got), got)
	}
	if got[1].Start.Before(got[0].End) {
		t.Fatalf("slots overlap: %v", got)
	}
}

func TestGenerateSkipsDayRemovedFromZone(t *testing.T) {
	// Samoa moved across the date line: 2011-12-30 does not exist in Pacific/Apia.
	g := newTestGenerator(t)
	apia := mustLoad(t, "Pacific/Apia")
	got, err := g.Generate(models.ParsedCommand{
		DaysOfWeek: []string{"TH", "FR", "SA"},
		TimeRange:  models.TimeRange{Start: "10:00", End: "11:00"},
		DateRange:  models.DateRange{Start: "2011-12-29", End: "2011-12-31"},
		Timezone:   "Pacific/Apia",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{"2011-12-29", "2011-12-31"}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(got), got)
	}
	for i, w := range want {
		local := got[i].Start.In(apia)
		if d := models.DateOf(local).String(); d != w || local.Hour() != 10 {
			t.Errorf("slot %d starts %s, want %s 10:00", i, local, w)
		}
	}
	if !got[0].End.Before(got[1].Start) {
		t.Fatalf("slots overlap: %v", got)
	}
}

func TestGenerateLastBlockMayCrossMidnight(t *testing.T) {
	g := newTestGenerator(t)
	got, err := g.Generate(models.ParsedCommand{
		DaysOfWeek: []string{"MO"},
		TimeRange:  models.TimeRange{Start: "23:30", End: "23:59"},
		DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-01"},
		Timezone:   "UTC",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 slot, got %d: %v", len(got), got)
	}
	wantStart := time.Date(2025, 12, 1, 23, 30, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 12, 2, 0, 30, 0, 0, time.UTC)
	if !got[0].Start.Equal(wantStart) || !got[0].End.Equal(wantEnd) {
		t.Fatalf("slot = %s - %s, want %s - %s", got[0].Start, got[0].End, wantStart, wantEnd)
	}
}
