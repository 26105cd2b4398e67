// Package caldav creates meeting events on a CalDAV server such as iCloud.
package caldav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"meetbook/internal/calendar"
	"meetbook/internal/models"
)

const (
	ICloudEndpoint = "https://caldav.icloud.com/"
	productID      = "-//meetbook//EN"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "meetbook/1.0")
	return t.Transport.RoundTrip(req)
}

type Config struct {
	Endpoint     string // defaults to iCloud
	Username     string
	Password     string
	CalendarName string
	// CalendarPath skips discovery when set, e.g. "/123456/calendars/work/".
	CalendarPath string
}

// Client is a calendar gateway backed by a CalDAV server.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	cfg          Config

	mu           sync.Mutex
	calendarPath string
}

// NewClient prepares a CalDAV client. The calendar is discovered on first use unless
// Config.CalendarPath is set.
func NewClient(logger *slog.Logger, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = ICloudEndpoint
	}
	transport := &customTransport{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 30 * time.Second}

	caldavClient, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	return &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		cfg:          cfg,
		calendarPath: cfg.CalendarPath,
	}, nil
}

// CreateEvent uploads ev as a new calendar object. The event UID is used as the external id.
func (c *Client) CreateEvent(ctx context.Context, ev models.Event) (calendar.EventRef, error) {
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return calendar.EventRef{}, calendar.ErrAuthenticationRequired
	}

	calPath, err := c.calendar(ctx)
	if err != nil {
		return calendar.EventRef{}, &calendar.ProviderError{Provider: "caldav", Err: err}
	}

	if ev.UID == "" {
		ev.UID = GenerateUID()
	}
	c.logger.Debug("Uploading event to CalDAV", "eventTitle", ev.Title, "uid", ev.UID)

	eventPath := path.Join(calPath, ev.UID+".ics")
	writer, err := c.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return calendar.EventRef{}, &calendar.ProviderError{Provider: "caldav", Err: fmt.Errorf("failed to create event on CalDAV server: %w", err)}
	}
	if err := ical.NewEncoder(writer).Encode(newCalendar(ev)); err != nil {
		writer.Close()
		return calendar.EventRef{}, &calendar.ProviderError{Provider: "caldav", Err: fmt.Errorf("failed to encode event to iCal format: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return calendar.EventRef{}, &calendar.ProviderError{Provider: "caldav", Err: fmt.Errorf("failed to upload event: %w", err)}
	}

	c.logger.Info("Created CalDAV event", "eventTitle", ev.Title, "uid", ev.UID)
	link := strings.TrimSuffix(c.cfg.Endpoint, "/") + eventPath
	return calendar.EventRef{ID: ev.UID, Link: link}, nil
}

func (c *Client) calendar(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.calendarPath != "" {
		return c.calendarPath, nil
	}
	c.logger.Info("Finding CalDAV calendar", "calendarName", c.cfg.CalendarName)
	p, err := c.findCalendar(ctx, c.cfg.CalendarName)
	if err != nil {
		return "", fmt.Errorf("could not find calendar '%s': %w", c.cfg.CalendarName, err)
	}
	c.calendarPath = p
	c.logger.Info("Found CalDAV calendar", "path", p)
	return p, nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// WriteICS writes events as a single iCalendar document. Events without a UID get one.
func WriteICS(w io.Writer, events []models.Event) error {
	cal := newCalendar(events...)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func newCalendar(events ...models.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for _, ev := range events {
		cal.Children = append(cal.Children, toICal(ev))
	}
	return cal
}

// toICal converts an internal Event model to an ical.Component (VEvent).
func toICal(event models.Event) *ical.Component {
	uid := event.UID
	if uid == "" {
		uid = GenerateUID()
	}
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime.UTC())

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	for _, attendee := range event.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", attendee))
		ve.Props.Add(p)
	}
	return ve
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
