package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"meetbook/internal/models"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenPostgres opens and pings a pgx-backed database/sql pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

type PostgresStore struct {
	execer Execer
}

func NewPostgresStore(execer Execer) *PostgresStore {
	return &PostgresStore{execer: execer}
}

func (s *PostgresStore) CreateBookingRequest(ctx context.Context, rawCommand, parsedJSON string) (models.BookingRequest, error) {
	const query = `
INSERT INTO meetbook.booking_requests (id, raw_command, parsed_json, created_at)
VALUES ($1, $2, $3, now())
RETURNING created_at
`
	br := models.BookingRequest{
		ID:         uuid.NewString(),
		RawCommand: rawCommand,
		ParsedJSON: parsedJSON,
	}
	if err := s.execer.QueryRowContext(ctx, query, br.ID, rawCommand, parsedJSON).Scan(&br.CreatedAt); err != nil {
		return models.BookingRequest{}, err
	}
	return br, nil
}

func (s *PostgresStore) CreateMeeting(ctx context.Context, m NewMeeting) (models.Meeting, error) {
	attendees, err := json.Marshal(m.Attendees)
	if err != nil {
		return models.Meeting{}, err
	}

	const query = `
INSERT INTO meetbook.meetings (
	id,
	booking_request_id,
	start_at,
	end_at,
	title,
	attendees,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6, now())
RETURNING created_at
`
	meeting := models.Meeting{
		ID:               uuid.NewString(),
		BookingRequestID: m.BookingRequestID,
		Start:            m.Start.UTC(),
		End:              m.End.UTC(),
		Title:            m.Title,
		Attendees:        m.Attendees,
	}
	if err := s.execer.QueryRowContext(ctx, query,
		meeting.ID,
		meeting.BookingRequestID,
		meeting.Start,
		meeting.End,
		meeting.Title,
		attendees,
	).Scan(&meeting.CreatedAt); err != nil {
		return models.Meeting{}, err
	}
	return meeting, nil
}

func (s *PostgresStore) AttachExternalID(ctx context.Context, meetingID, externalID string) error {
	const query = `
UPDATE meetbook.meetings
SET external_event_id = $2
WHERE id = $1 AND external_event_id IS NULL
`
	res, err := s.execer.ExecContext(ctx, query, meetingID, externalID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := s.execer.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM meetbook.meetings WHERE id = $1)`,
		meetingID,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("meeting %s: %w", meetingID, ErrAlreadyLinked)
	}
	return fmt.Errorf("meeting %s: %w", meetingID, ErrNotFound)
}

func (s *PostgresStore) GetBookingRequest(ctx context.Context, id string) (models.BookingRequest, error) {
	const query = `
SELECT id, raw_command, parsed_json, created_at
FROM meetbook.booking_requests
WHERE id = $1
`
	var br models.BookingRequest
	err := s.execer.QueryRowContext(ctx, query, id).Scan(&br.ID, &br.RawCommand, &br.ParsedJSON, &br.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BookingRequest{}, fmt.Errorf("booking request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.BookingRequest{}, err
	}
	return br, nil
}

func (s *PostgresStore) ListMeetings(ctx context.Context, bookingRequestID string) ([]models.Meeting, error) {
	const query = `
SELECT id, booking_request_id, start_at, end_at, title, attendees, external_event_id, created_at
FROM meetbook.meetings
WHERE booking_request_id = $1
ORDER BY start_at ASC, created_at ASC
`
	rows, err := s.execer.QueryContext(ctx, query, bookingRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []models.Meeting
	for rows.Next() {
		var m models.Meeting
		var attendees []byte
		var externalID sql.NullString
		if err := rows.Scan(
			&m.ID,
			&m.BookingRequestID,
			&m.Start,
			&m.End,
			&m.Title,
			&attendees,
			&externalID,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(attendees, &m.Attendees); err != nil {
			return nil, fmt.Errorf("decode attendees of meeting %s: %w", m.ID, err)
		}
		m.ExternalEventID = externalID.String
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return meetings, nil
}

// PostgresDirectory looks contacts up in meetbook.contacts.
type PostgresDirectory struct {
	execer Execer
}

func NewPostgresDirectory(execer Execer) *PostgresDirectory {
	return &PostgresDirectory{execer: execer}
}

// Lookup returns the oldest contact whose display name or aliases contain fragment,
// compared case-sensitively. Ties on created_at are broken by id.
func (d *PostgresDirectory) Lookup(ctx context.Context, fragment string) (*models.Contact, error) {
	const query = `
SELECT id, display_name, aliases, email
FROM meetbook.contacts
WHERE strpos(display_name, $1) > 0 OR strpos(aliases, $1) > 0
ORDER BY created_at ASC, id ASC
LIMIT 1
`
	var c models.Contact
	err := d.execer.QueryRowContext(ctx, query, fragment).Scan(&c.ID, &c.DisplayName, &c.Aliases, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Add inserts a contact and returns it with its assigned id.
func (d *PostgresDirectory) Add(ctx context.Context, c models.Contact) (models.Contact, error) {
	const query = `
INSERT INTO meetbook.contacts (id, display_name, aliases, email, created_at)
VALUES ($1, $2, $3, $4, clock_timestamp())
`
	c.ID = uuid.NewString()
	if _, err := d.execer.ExecContext(ctx, query, c.ID, c.DisplayName, c.Aliases, c.Email); err != nil {
		return models.Contact{}, err
	}
	return c, nil
}
