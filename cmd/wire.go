package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"meetbook/internal/booking"
	"meetbook/internal/caldav"
	"meetbook/internal/calendar"
	"meetbook/internal/config"
	"meetbook/internal/contacts"
	"meetbook/internal/google"
	"meetbook/internal/models"
	"meetbook/internal/slots"
	"meetbook/internal/store"
)

// deps holds everything a command needs, built once from the configuration.
type deps struct {
	cfg    config.Config
	logger *slog.Logger

	db        *sql.DB // nil unless DATABASE_URL is set
	store     store.Store
	directory contacts.Directory
	gateway   calendar.Gateway
	google    *google.CalendarClient // nil unless Google is the provider and configured

	resolver     *contacts.Resolver
	generator    *slots.Generator
	orchestrator *booking.Orchestrator
}

func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{cfg: cfg, logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.db = db
		d.store = store.NewPostgresStore(db)
		d.directory = store.NewPostgresDirectory(db)
		logger.Info("Using Postgres store and contact directory.")
	} else {
		fileStore, err := store.OpenFileStore(cfg.StoreFile)
		if err != nil {
			return nil, err
		}
		d.store = fileStore
		dir, err := loadDirectory(cfg.ContactsFile, logger)
		if err != nil {
			return nil, err
		}
		d.directory = dir
		logger.Info("Using file store.", "store_file", cfg.StoreFile, "contacts_file", cfg.ContactsFile)
	}

	gw, err := d.buildGateway()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.gateway = gw

	slotCfg, err := cfg.SlotConfig()
	if err != nil {
		d.Close()
		return nil, err
	}
	d.generator = slots.NewGenerator(slotCfg)
	d.resolver = contacts.NewResolver(logger, d.directory)
	d.orchestrator = booking.NewOrchestrator(logger, d.store, d.gateway, d.resolver, d.generator)
	return d, nil
}

func loadDirectory(path string, logger *slog.Logger) (*contacts.StaticDirectory, error) {
	dir, err := contacts.LoadDirectoryFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Contacts file not found, starting with an empty directory.", "file", path)
		return contacts.NewStaticDirectory(nil), nil
	}
	return dir, err
}

func (d *deps) buildGateway() (calendar.Gateway, error) {
	switch d.cfg.CalendarProvider {
	case config.ProviderGoogle:
		client, err := google.NewClient(d.logger, d.cfg.Google)
		if err != nil {
			d.logger.Warn("Google Calendar is not configured, meetings will not be synced.", "error", err)
			return calendar.Disabled{}, nil
		}
		d.google = client
		return client, nil
	case config.ProviderCalDAV:
		client, err := caldav.NewClient(d.logger, d.cfg.CalDAV)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return client, nil
	default:
		return calendar.Disabled{}, nil
	}
}

// googleClient returns the Google client or an error explaining why there is none.
func (d *deps) googleClient() (*google.CalendarClient, error) {
	if d.cfg.CalendarProvider != config.ProviderGoogle {
		return nil, fmt.Errorf("CALENDAR_PROVIDER is %q, not %q", d.cfg.CalendarProvider, config.ProviderGoogle)
	}
	if d.google == nil {
		return google.NewClient(d.logger, d.cfg.Google)
	}
	return d.google, nil
}

func (d *deps) Close() {
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Warn("Failed to close database", "error", err)
		}
	}
}

// bookedEvents rebuilds calendar events for the meetings of a booking, for ICS export.
func (d *deps) bookedEvents(ctx context.Context, bookingRequestID string) ([]models.Event, error) {
	meetings, err := d.store.ListMeetings(ctx, bookingRequestID)
	if err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(meetings))
	for _, m := range meetings {
		ev := m.Event()
		ev.UID = m.ID
		events = append(events, ev)
	}
	return events, nil
}
