package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"meetbook/internal/models"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *PostgresStore, *PostgresDirectory) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return mock, NewPostgresStore(db), NewPostgresDirectory(db)
}

var contactColumns = []string{"id", "display_name", "aliases", "email"}

const lookupSQL = `WHERE strpos(display_name, $1) > 0 OR strpos(aliases, $1) > 0 ORDER BY created_at ASC, id ASC LIMIT 1`

func TestDirectoryLookupFirstMatch(t *testing.T) {
	mock, _, dir := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WithArgs("Bob").
		WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow("c-1", "Bob Stone", "Bobby", "bob@example.com"))

	c, err := dir.Lookup(context.Background(), "Bob")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if c == nil || c.ID != "c-1" || c.DisplayName != "Bob Stone" || c.Email != "bob@example.com" {
		t.Fatalf("contact = %+v", c)
	}
}

func TestDirectoryLookupNoMatch(t *testing.T) {
	mock, _, dir := newMock(t)
	// The fragment is passed through unchanged; strpos is case-sensitive.
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(contactColumns))

	c, err := dir.Lookup(context.Background(), "bob")
	if err != nil || c != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", c, err)
	}
}

func TestDirectoryLookupError(t *testing.T) {
	mock, _, dir := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WithArgs("Bob").
		WillReturnError(errors.New("connection refused"))

	if _, err := dir.Lookup(context.Background(), "Bob"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestDirectoryAdd(t *testing.T) {
	mock, _, dir := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO meetbook.contacts (id, display_name, aliases, email, created_at) VALUES ($1, $2, $3, $4, clock_timestamp())`)).
		WithArgs(sqlmock.AnyArg(), "Bob Stone", "Bobby", "bob@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := dir.Add(context.Background(), models.Contact{DisplayName: "Bob Stone", Aliases: "Bobby", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected an assigned id")
	}
}

const attachSQL = `UPDATE meetbook.meetings SET external_event_id = $2 WHERE id = $1 AND external_event_id IS NULL`

const existsSQL = `SELECT EXISTS (SELECT 1 FROM meetbook.meetings WHERE id = $1)`

func TestAttachExternalID(t *testing.T) {
	mock, st, _ := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(attachSQL)).
		WithArgs("m-1", "evt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.AttachExternalID(context.Background(), "m-1", "evt-1"); err != nil {
		t.Fatalf("AttachExternalID: %v", err)
	}
}

func TestAttachExternalIDNoRowUpdated(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   error
	}{
		{"already linked", true, ErrAlreadyLinked},
		{"missing meeting", false, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, st, _ := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta(attachSQL)).
				WithArgs("m-1", "evt-2").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(regexp.QuoteMeta(existsSQL)).
				WithArgs("m-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			err := st.AttachExternalID(context.Background(), "m-1", "evt-2")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateMeetingEncodesAttendees(t *testing.T) {
	mock, st, _ := newMock(t)
	start := time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC)
	created := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO meetbook.meetings`)).
		WithArgs(sqlmock.AnyArg(), "br-1", start, start.Add(time.Hour), "Meeting with Alice",
			[]byte(`[{"name":"Alice","email":"alice@x.com"}]`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	m, err := st.CreateMeeting(context.Background(), NewMeeting{
		BookingRequestID: "br-1",
		Start:            start,
		End:              start.Add(time.Hour),
		Title:            "Meeting with Alice",
		Attendees:        []models.ContactInfo{{Name: "Alice", Email: "alice@x.com"}},
	})
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if m.ID == "" || !m.CreatedAt.Equal(created) || m.State() != models.MeetingCreated {
		t.Fatalf("meeting = %+v", m)
	}
}

func TestListMeetingsDecodesAttendees(t *testing.T) {
	mock, st, _ := newMock(t)
	start := time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC)
	columns := []string{"id", "booking_request_id", "start_at", "end_at", "title", "attendees", "external_event_id", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM meetbook.meetings WHERE booking_request_id = $1 ORDER BY start_at ASC, created_at ASC`)).
		WithArgs("br-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("m-1", "br-1", start, start.Add(time.Hour), "Meeting with Alice and Ghost",
				[]byte(`[{"name":"Alice","email":"alice@x.com"},{"name":"Ghost","email":""}]`), "evt-1", start).
			AddRow("m-2", "br-1", start.Add(time.Hour), start.Add(2*time.Hour), "Meeting with Alice and Ghost",
				[]byte(`[{"name":"Alice","email":"alice@x.com"},{"name":"Ghost","email":""}]`), nil, start))

	meetings, err := st.ListMeetings(context.Background(), "br-1")
	if err != nil {
		t.Fatalf("ListMeetings: %v", err)
	}
	if len(meetings) != 2 {
		t.Fatalf("expected 2 meetings, got %d", len(meetings))
	}
	if got := meetings[0].Attendees; len(got) != 2 || got[0] != (models.ContactInfo{Name: "Alice", Email: "alice@x.com"}) || got[1].Name != "Ghost" {
		t.Fatalf("attendees = %+v", got)
	}
	if meetings[0].State() != models.MeetingLinked || meetings[1].State() != models.MeetingCreated {
		t.Fatalf("states = %s, %s", meetings[0].State(), meetings[1].State())
	}
}

func TestGetBookingRequestNotFound(t *testing.T) {
	mock, st, _ := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM meetbook.booking_requests WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "raw_command", "parsed_json", "created_at"}))

	if _, err := st.GetBookingRequest(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
