// Package config reads meetbook settings from the environment.
package config

import (
	"os"
	"strings"
	"time"

	"meetbook/internal/caldav"
	"meetbook/internal/google"
	"meetbook/internal/models"
	"meetbook/internal/slots"
)

const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
	ProviderNone   = "none"
)

type Config struct {
	LogLevel string
	HTTPAddr string

	// DatabaseURL selects the Postgres store and directory. When empty, StoreFile and
	// ContactsFile are used instead.
	DatabaseURL  string
	StoreFile    string
	ContactsFile string

	DefaultTimezone  string
	DefaultStartTime string
	DefaultEndTime   string

	CalendarProvider string
	Google           google.Config
	CalDAV           caldav.Config
}

// Load reads the configuration from environment variables. Call godotenv.Load first to
// pick up a .env file.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StoreFile:        getEnv("STORE_FILE", "meetbook-store.json"),
		ContactsFile:     getEnv("CONTACTS_FILE", "contacts.yaml"),
		DefaultTimezone:  getEnv("DEFAULT_TIMEZONE", "America/Toronto"),
		DefaultStartTime: getEnv("DEFAULT_START_TIME", "09:00"),
		DefaultEndTime:   getEnv("DEFAULT_END_TIME", "17:00"),
		CalendarProvider: strings.ToLower(getEnv("CALENDAR_PROVIDER", ProviderGoogle)),
		Google: google.Config{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
			TokenFile:    getEnv("GOOGLE_TOKEN_FILE", "token-google.json"),
			CalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),
		},
		CalDAV: caldav.Config{
			Endpoint:     getEnv("CALDAV_ENDPOINT", caldav.ICloudEndpoint),
			Username:     os.Getenv("CALDAV_USERNAME"),
			Password:     os.Getenv("CALDAV_PASSWORD"),
			CalendarName: os.Getenv("CALDAV_CALENDAR_NAME"),
			CalendarPath: os.Getenv("CALDAV_CALENDAR_PATH"),
		},
	}

	switch cfg.CalendarProvider {
	case ProviderGoogle, ProviderCalDAV, ProviderNone:
	default:
		return cfg, &configError{message: "invalid CALENDAR_PROVIDER: " + cfg.CalendarProvider}
	}
	if cfg.CalendarProvider == ProviderCalDAV && cfg.CalDAV.CalendarName == "" && cfg.CalDAV.CalendarPath == "" {
		return cfg, &configError{message: "CALDAV_CALENDAR_NAME or CALDAV_CALENDAR_PATH is required for the caldav provider"}
	}
	if _, err := cfg.SlotConfig(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SlotConfig returns the slot generator defaults.
func (c Config) SlotConfig() (slots.Config, error) {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return slots.Config{}, &configError{message: "invalid DEFAULT_TIMEZONE: " + err.Error()}
	}
	if _, err := models.ParseTimeOfDay(c.DefaultStartTime); err != nil {
		return slots.Config{}, &configError{message: "invalid DEFAULT_START_TIME: " + err.Error()}
	}
	if _, err := models.ParseTimeOfDay(c.DefaultEndTime); err != nil {
		return slots.Config{}, &configError{message: "invalid DEFAULT_END_TIME: " + err.Error()}
	}
	return slots.Config{
		DefaultLocation: loc,
		DefaultWindow:   models.TimeRange{Start: c.DefaultStartTime, End: c.DefaultEndTime},
	}, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

type configError struct {
	message string
}

func (e *configError) Error() string {
	return e.message
}

var _ error = (*configError)(nil)
