package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meetbook/internal/booking"
	"meetbook/internal/calendar"
	"meetbook/internal/config"
	"meetbook/internal/models"
)

func TestContactFlags(t *testing.T) {
	if got := contactFlags(nil); got != nil {
		t.Fatalf("expected nil for no flags, got %v", got)
	}
	got := contactFlags([]string{"Bob", "Alice <alice@x.com>"})
	want := []models.ContactInfo{{Name: "Bob"}, {Name: "Alice", Email: "alice@x.com"}}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("contact %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReadCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.json")
	body := `{"people":["Alice"],"daysOfWeek":["MO"],"timeRange":{"start":"10:00","end":"12:00"},` +
		`"dateRange":{"start":"2025-12-01","end":"2025-12-03"},"timezone":"America/Toronto"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cmd, err := readCommand(path)
	if err != nil {
		t.Fatalf("readCommand: %v", err)
	}
	if cmd.TimeRange.Start != "10:00" || cmd.DateRange.End != "2025-12-03" || cmd.People[0] != "Alice" {
		t.Fatalf("cmd = %+v", cmd)
	}

	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readCommand(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestBuildDepsWithFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		StoreFile:        filepath.Join(dir, "store.json"),
		ContactsFile:     filepath.Join(dir, "missing.yaml"),
		DefaultTimezone:  "UTC",
		DefaultStartTime: "09:00",
		DefaultEndTime:   "17:00",
		CalendarProvider: config.ProviderNone,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	d, err := buildDeps(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	defer d.Close()
	if _, ok := d.gateway.(calendar.Disabled); !ok {
		t.Fatalf("gateway = %T", d.gateway)
	}
	if _, err := d.googleClient(); err == nil {
		t.Fatal("expected an error for a non-google provider")
	}

	cmd := models.ParsedCommand{
		People:     []string{"Alice <alice@x.com>"},
		DaysOfWeek: []string{"MO"},
		TimeRange:  models.TimeRange{Start: "10:00", End: "12:00"},
		DateRange:  models.DateRange{Start: "2025-12-01", End: "2025-12-01"},
	}
	res, err := d.orchestrator.Book(context.Background(), booking.Request{Command: cmd})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.MeetingCount != 2 {
		t.Fatalf("meeting count = %d", res.MeetingCount)
	}

	out := filepath.Join(dir, "booked.ics")
	if err := writeICSFile(context.Background(), d, res.BookingRequestID, out); err != nil {
		t.Fatalf("writeICSFile: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	ics := string(data)
	if strings.Count(ics, "BEGIN:VEVENT") != 2 || !strings.Contains(ics, "mailto:alice@x.com") {
		t.Fatalf("unexpected ics:\n%s", ics)
	}
	if !strings.Contains(ics, "DESCRIPTION:Attendees: Alice <alice@x.com>") {
		t.Fatalf("attendee description missing:\n%s", ics)
	}
	if !strings.Contains(ics, "UID:"+res.Meetings[0].ID) {
		t.Fatalf("meeting id not used as UID:\n%s", ics)
	}
}
