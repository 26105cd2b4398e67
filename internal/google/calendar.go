package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"meetbook/internal/calendar"
	"meetbook/internal/models"
)

const (
	credentialsFile = "credentials.json"
	oobRedirectURL  = "urn:ietf:wg:oauth:2.0:oob"
)

// Config selects the OAuth client, the token file and the target calendar.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // defaults to the out-of-band desktop flow
	TokenFile    string
	CalendarID   string // defaults to "primary"
	Endpoint     string // overrides the Calendar API base URL; empty uses Google's
}

// CalendarClient creates events on a Google Calendar on behalf of the account whose
// token is stored in Config.TokenFile.
type CalendarClient struct {
	cfg    Config
	oauth  *oauth2.Config
	logger *slog.Logger
}

// NewClient creates a new Google Calendar client.
// The token file is read on every call, so connecting or disconnecting an account takes
// effect without restarting.
func NewClient(logger *slog.Logger, cfg Config) (*CalendarClient, error) {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.TokenFile == "" {
		return nil, errors.New("google token file is not configured")
	}
	oauthCfg, err := getOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}
	return &CalendarClient{cfg: cfg, oauth: oauthCfg, logger: logger}, nil
}

// CreateEvent inserts ev into the configured calendar in UTC and asks Google to email
// the attendees.
func (c *CalendarClient) CreateEvent(ctx context.Context, ev models.Event) (calendar.EventRef, error) {
	token, err := tokenFromFile(c.cfg.TokenFile)
	if err != nil || token.RefreshToken == "" {
		return calendar.EventRef{}, calendar.ErrAuthenticationRequired
	}

	service, err := c.service(ctx, token)
	if err != nil {
		return calendar.EventRef{}, &calendar.ProviderError{Provider: "google", Err: err}
	}

	c.logger.Debug("Creating Google Calendar event", "calendarID", c.cfg.CalendarID, "title", ev.Title, "start", ev.StartTime)
	created, err := service.Events.Insert(c.cfg.CalendarID, toGoogleEvent(ev)).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return calendar.EventRef{}, fmt.Errorf("%w: %v", calendar.ErrAuthenticationRequired, err)
		}
		return calendar.EventRef{}, &calendar.ProviderError{Provider: "google", Err: fmt.Errorf("failed to insert event: %w", err)}
	}

	c.logger.Info("Created Google Calendar event", "id", created.Id, "title", ev.Title)
	return calendar.EventRef{ID: created.Id, Link: created.HtmlLink}, nil
}

func (c *CalendarClient) service(ctx context.Context, token *oauth2.Token) (*gcal.Service, error) {
	ts := &savingTokenSource{
		src:    c.oauth.TokenSource(ctx, token),
		path:   c.cfg.TokenFile,
		last:   token.AccessToken,
		logger: c.logger,
	}
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}

// toGoogleEvent converts the internal Event model to a Google Calendar event.
func toGoogleEvent(ev models.Event) *gcal.Event {
	attendees := make([]*gcal.EventAttendee, 0, len(ev.Attendees))
	for _, email := range ev.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: email})
	}
	return &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.StartTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &gcal.EventDateTime{
			DateTime: ev.EndTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		Attendees: attendees,
	}
}

// IsAuthenticated reports whether a token with a refresh token is stored.
func (c *CalendarClient) IsAuthenticated() bool {
	token, err := tokenFromFile(c.cfg.TokenFile)
	return err == nil && token.RefreshToken != ""
}

// Disconnect forgets the stored token. A missing token file is not an error.
func (c *CalendarClient) Disconnect() error {
	if err := os.Remove(c.cfg.TokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to remove token file: %w", err)
	}
	return nil
}

// AuthCodeURL returns the consent page URL for the authorization flow.
func (c *CalendarClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// CompleteAuth exchanges an authorization code and stores the resulting token.
func (c *CalendarClient) CompleteAuth(ctx context.Context, authCode string) error {
	token, err := c.oauth.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return SaveToken(c.cfg.TokenFile, token)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit client credentials over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	if redirectURL == "" {
		redirectURL = oobRedirectURL
	}
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{gcal.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = redirectURL
	return config, nil
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// savingTokenSource writes refreshed tokens back to the token file.
type savingTokenSource struct {
	mu     sync.Mutex
	src    oauth2.TokenSource
	path   string
	last   string
	logger *slog.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			s.logger.Error("Failed to save refreshed Google token", "file", s.path, "error", err)
		}
	}
	return tok, nil
}
