package models

import "time"

// SlotLength is the fixed duration of every generated slot.
const SlotLength = time.Hour

// Slot is a concrete one-hour meeting interval.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BookingRequest is the persisted record of one submitted scheduling intent.
// It is never modified after creation.
type BookingRequest struct {
	ID         string    `json:"id"`
	RawCommand string    `json:"rawCommand"`
	ParsedJSON string    `json:"parsedJson"`
	CreatedAt  time.Time `json:"createdAt"`
}

type MeetingState string

const (
	MeetingCreated MeetingState = "CREATED"
	MeetingLinked  MeetingState = "LINKED"
)

// Meeting is one scheduled occurrence of a booking request.
type Meeting struct {
	ID               string        `json:"id"`
	BookingRequestID string        `json:"bookingRequestId"`
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	Title            string        `json:"title"`
	Attendees        []ContactInfo `json:"attendees"`
	ExternalEventID  string        `json:"externalEventId,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// State reports whether the meeting has been linked to an external calendar event.
func (m Meeting) State() MeetingState {
	if m.ExternalEventID != "" {
		return MeetingLinked
	}
	return MeetingCreated
}

// BookedMeeting is the per-meeting entry of a BookingResult. External fields are set only
// when the calendar sync for that slot succeeded.
type BookedMeeting struct {
	ID                string    `json:"id"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	Title             string    `json:"title"`
	ExternalEventID   string    `json:"externalEventId,omitempty"`
	ExternalEventLink string    `json:"externalEventLink,omitempty"`
}

// Synced reports whether the meeting was created on the external calendar.
func (m BookedMeeting) Synced() bool {
	return m.ExternalEventID != ""
}

type BookingResult struct {
	BookingRequestID string          `json:"bookingRequestId"`
	MeetingCount     int             `json:"meetingCount"`
	Meetings         []BookedMeeting `json:"meetings"`
}
