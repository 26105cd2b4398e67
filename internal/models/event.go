package models

import (
	"strings"
	"time"
)

// Event represents a calendar event to be created on an external calendar.
// This is an internal representation, independent of any specific calendar provider.
type Event struct {
	UID         string    // The iCalendar UID; providers that need one generate it when empty
	Title       string    // Summary or title of the event
	Description string    // Detailed description of the event
	StartTime   time.Time // Start time of the event
	EndTime     time.Time // End time of the event
	Attendees   []string  // List of attendee emails
}

// Event builds the provider-neutral calendar event for a persisted meeting.
func (m Meeting) Event() Event {
	emails := make([]string, 0, len(m.Attendees))
	invited := make([]string, 0, len(m.Attendees))
	for _, a := range m.Attendees {
		if a.Email == "" {
			// Listed in the description so the organizer can invite them by hand.
			invited = append(invited, a.Name+" (no email)")
			continue
		}
		emails = append(emails, a.Email)
		invited = append(invited, a.Name+" <"+a.Email+">")
	}
	ev := Event{
		Title:     m.Title,
		StartTime: m.Start,
		EndTime:   m.End,
		Attendees: emails,
	}
	if len(invited) > 0 {
		ev.Description = "Attendees: " + strings.Join(invited, ", ")
	}
	return ev
}
