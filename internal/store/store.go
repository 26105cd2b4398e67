// Package store persists booking requests, meetings and the contact directory.
package store

import (
	"context"
	"errors"
	"time"

	"meetbook/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyLinked = errors.New("meeting already linked to an external event")
)

// NewMeeting holds the fields of a meeting before the store assigns its id.
type NewMeeting struct {
	BookingRequestID string
	Start            time.Time
	End              time.Time
	Title            string
	Attendees        []models.ContactInfo
}

// Store is the durable record of booking requests and their meetings. Each call is its
// own write; nothing spans a transaction.
type Store interface {
	CreateBookingRequest(ctx context.Context, rawCommand, parsedJSON string) (models.BookingRequest, error)
	CreateMeeting(ctx context.Context, m NewMeeting) (models.Meeting, error)
	// AttachExternalID links a meeting to its external event. A meeting can be linked once.
	AttachExternalID(ctx context.Context, meetingID, externalID string) error
	GetBookingRequest(ctx context.Context, id string) (models.BookingRequest, error)
	ListMeetings(ctx context.Context, bookingRequestID string) ([]models.Meeting, error)
}
