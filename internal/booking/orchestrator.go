// Package booking turns a parsed command into persisted meetings and external calendar
// events.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"meetbook/internal/calendar"
	"meetbook/internal/models"
	"meetbook/internal/store"
)

// Store is the write side of the persistence layer used while booking.
type Store interface {
	CreateBookingRequest(ctx context.Context, rawCommand, parsedJSON string) (models.BookingRequest, error)
	CreateMeeting(ctx context.Context, m store.NewMeeting) (models.Meeting, error)
	AttachExternalID(ctx context.Context, meetingID, externalID string) error
}

type ContactResolver interface {
	Resolve(ctx context.Context, people []string) (models.ContactResolution, error)
}

type SlotGenerator interface {
	Generate(cmd models.ParsedCommand) ([]models.Slot, error)
}

// Request is one booking call. When Contacts is nil the command's people are used as
// name-only contacts and resolved.
type Request struct {
	Command    models.ParsedCommand
	RawCommand string
	Contacts   []models.ContactInfo
}

// Orchestrator books one meeting per generated slot and syncs each to the calendar
// gateway. Slots are processed one after another; a calendar failure only affects its own
// slot, while a store failure aborts the call.
type Orchestrator struct {
	logger   *slog.Logger
	store    Store
	gateway  calendar.Gateway
	resolver ContactResolver
	slots    SlotGenerator
}

func NewOrchestrator(logger *slog.Logger, st Store, gw calendar.Gateway, resolver ContactResolver, gen SlotGenerator) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		store:    st,
		gateway:  gw,
		resolver: resolver,
		slots:    gen,
	}
}

// Book persists a booking request and its meetings. Calling it twice with the same input
// creates two independent bookings.
func (o *Orchestrator) Book(ctx context.Context, req Request) (*models.BookingResult, error) {
	if err := req.Command.Validate(); err != nil {
		return nil, err
	}

	contacts := req.Contacts
	if contacts == nil {
		for _, p := range req.Command.People {
			contacts = append(contacts, models.ContactInfo{Name: p})
		}
	}
	attendees, err := o.completeContacts(ctx, contacts)
	if err != nil {
		return nil, &StoreError{Op: "resolve contacts", Err: err}
	}

	slots, err := o.slots.Generate(req.Command)
	if err != nil {
		return nil, err
	}

	parsed, err := json.Marshal(req.Command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parsed command: %w", err)
	}
	br, err := o.store.CreateBookingRequest(ctx, req.RawCommand, string(parsed))
	if err != nil {
		return nil, &StoreError{Op: "create booking request", Err: err}
	}
	o.logger.Info("Created booking request.", "id", br.ID, "slots", len(slots), "attendees", len(attendees))

	title := meetingTitle(attendees)
	result := &models.BookingResult{
		BookingRequestID: br.ID,
		Meetings:         make([]models.BookedMeeting, 0, len(slots)),
	}

	for _, slot := range slots {
		meeting, err := o.store.CreateMeeting(ctx, store.NewMeeting{
			BookingRequestID: br.ID,
			Start:            slot.Start,
			End:              slot.End,
			Title:            title,
			Attendees:        attendees,
		})
		if err != nil {
			return nil, &StoreError{Op: "create meeting", Err: err}
		}

		booked := models.BookedMeeting{
			ID:    meeting.ID,
			Start: meeting.Start,
			End:   meeting.End,
			Title: meeting.Title,
		}

		ref, err := o.gateway.CreateEvent(ctx, meeting.Event())
		if err != nil {
			o.logSyncFailure(meeting, err)
			// The meeting stays booked without an external event.
			result.Meetings = append(result.Meetings, booked)
			continue
		}

		if err := o.store.AttachExternalID(ctx, meeting.ID, ref.ID); err != nil {
			return nil, &StoreError{Op: "attach external event", Err: err}
		}
		booked.ExternalEventID = ref.ID
		booked.ExternalEventLink = ref.Link
		result.Meetings = append(result.Meetings, booked)
		o.logger.Debug("Linked meeting to calendar event.", "meeting", meeting.ID, "event", ref.ID)
	}

	result.MeetingCount = len(result.Meetings)
	o.logger.Info("Booking finished.", "id", br.ID, "meetings", result.MeetingCount, "synced", countSynced(result.Meetings))
	return result, nil
}

// completeContacts re-resolves contacts that have no email. A contact that still cannot be
// resolved stays in the list by name only.
func (o *Orchestrator) completeContacts(ctx context.Context, contacts []models.ContactInfo) ([]models.ContactInfo, error) {
	out := make([]models.ContactInfo, 0, len(contacts))
	for _, c := range contacts {
		if c.Email != "" {
			out = append(out, c)
			continue
		}
		res, err := o.resolver.Resolve(ctx, []string{c.Name})
		if err != nil {
			return nil, err
		}
		if len(res.Resolved) == 0 {
			o.logger.Warn("Attendee has no email and was not found in the directory.", "name", c.Name)
			out = append(out, c)
			continue
		}
		out = append(out, res.Resolved...)
	}
	return out, nil
}

func (o *Orchestrator) logSyncFailure(meeting models.Meeting, err error) {
	if errors.Is(err, calendar.ErrAuthenticationRequired) {
		o.logger.Warn("Calendar not connected, meeting kept without calendar event.", "meeting", meeting.ID, "start", meeting.Start)
		return
	}
	o.logger.Error("Failed to create calendar event", "meeting", meeting.ID, "start", meeting.Start, "error", err)
}

func meetingTitle(attendees []models.ContactInfo) string {
	names := make([]string, 0, len(attendees))
	for _, a := range attendees {
		names = append(names, a.Name)
	}
	return "Meeting with " + strings.Join(names, " and ")
}

func countSynced(meetings []models.BookedMeeting) int {
	n := 0
	for _, m := range meetings {
		if m.Synced() {
			n++
		}
	}
	return n
}
