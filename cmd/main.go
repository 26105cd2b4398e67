package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"meetbook/internal/booking"
	"meetbook/internal/caldav"
	"meetbook/internal/config"
	"meetbook/internal/contacts"
	"meetbook/internal/logging"
	"meetbook/internal/models"
	"meetbook/internal/server"
	"meetbook/internal/store"
	"meetbook/internal/store/migrations"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "meetbook",
		Usage: "Book recurring one-hour meetings and push them to your calendar.",
		Commands: []*cli.Command{
			authCommand(),
			statusCommand(),
			disconnectCommand(),
			resolveCommand(),
			slotsCommand(),
			bookCommand(),
			serveCommand(),
			migrateCommand(),
			contactsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// withDeps loads the configuration, builds the dependencies and runs fn with them.
func withDeps(c *cli.Context, fn func(d *deps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	d, err := buildDeps(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect a Google account so meetings are added to its calendar.",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(d *deps) error {
				client, err := d.googleClient()
				if err != nil {
					return fmt.Errorf("failed to get google client: %w", err)
				}
				d.logger.Info("Starting Google authentication flow.")

				authURL := client.AuthCodeURL(uuid.NewString())
				fmt.Printf("Go to the following link in your browser then type the "+
					"authorization code: \n%v\n", authURL)

				fmt.Print("Enter Authorization Code: ")
				reader := bufio.NewReader(os.Stdin)
				authCode, _ := reader.ReadString('\n')
				authCode = strings.TrimSpace(authCode)
				if authCode == "" {
					return errors.New("no authorization code entered")
				}

				if err := client.CompleteAuth(c.Context, authCode); err != nil {
					return err
				}
				d.logger.Info("Successfully authenticated and saved token.", "file", d.cfg.Google.TokenFile)
				return nil
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show whether a Google account is connected.",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(d *deps) error {
				client, err := d.googleClient()
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, map[string]bool{"authenticated": client.IsAuthenticated()})
			})
		},
	}
}

func disconnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "disconnect",
		Usage: "Forget the stored Google token.",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(d *deps) error {
				client, err := d.googleClient()
				if err != nil {
					return err
				}
				if err := client.Disconnect(); err != nil {
					return err
				}
				d.logger.Info("Google account disconnected.")
				return nil
			})
		},
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve people to contacts using the directory.",
		ArgsUsage: "<person> [person...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("at least one person is required")
			}
			return withDeps(c, func(d *deps) error {
				res, err := d.resolver.Resolve(c.Context, c.Args().Slice())
				if err != nil {
					return err
				}
				return printJSON(c.App.Writer, res)
			})
		},
	}
}

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Preview the one-hour slots a parsed command expands to.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "command", Aliases: []string{"c"}, Required: true, Usage: "Parsed command JSON file, or - for stdin."},
		},
		Action: func(c *cli.Context) error {
			cmd, err := readCommand(c.String("command"))
			if err != nil {
				return err
			}
			return withDeps(c, func(d *deps) error {
				slots, err := d.generator.Generate(cmd)
				if err != nil {
					return err
				}
				if slots == nil {
					slots = []models.Slot{}
				}
				return printJSON(c.App.Writer, slots)
			})
		},
	}
}

func bookCommand() *cli.Command {
	return &cli.Command{
		Name:  "book",
		Usage: "Book a meeting for every slot of a parsed command.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "command", Aliases: []string{"c"}, Required: true, Usage: "Parsed command JSON file, or - for stdin."},
			&cli.StringFlag{Name: "raw", Usage: "The original free-text command, stored with the booking."},
			&cli.StringSliceFlag{Name: "contact", Usage: `Attendee as "Name <email>" or a name to look up. Defaults to the command's people.`},
			&cli.StringFlag{Name: "ics", Usage: "Also write the booked meetings to this iCalendar file."},
		},
		Action: func(c *cli.Context) error {
			cmd, err := readCommand(c.String("command"))
			if err != nil {
				return err
			}
			return withDeps(c, func(d *deps) error {
				res, err := d.orchestrator.Book(c.Context, booking.Request{
					Command:    cmd,
					RawCommand: c.String("raw"),
					Contacts:   contactFlags(c.StringSlice("contact")),
				})
				if err != nil {
					return err
				}

				if out := c.String("ics"); out != "" {
					if err := writeICSFile(c.Context, d, res.BookingRequestID, out); err != nil {
						return err
					}
					d.logger.Info("Wrote iCalendar file.", "file", out)
				}
				return printJSON(c.App.Writer, res)
			})
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address. Overrides HTTP_ADDR."},
		},
		Action: func(c *cli.Context) error {
			return withDeps(c, func(d *deps) error {
				addr := d.cfg.HTTPAddr
				if c.IsSet("addr") {
					addr = c.String("addr")
				}

				serverDeps := server.Deps{
					Booker:   d.orchestrator,
					Resolver: d.resolver,
					Slots:    d.generator,
					Bookings: d.store,
				}
				if d.google != nil {
					serverDeps.Auth = d.google
				}
				srv := &http.Server{
					Addr:              addr,
					Handler:           server.New(d.logger, serverDeps).Handler(),
					ReadHeaderTimeout: 10 * time.Second,
				}

				ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
				defer stop()

				errCh := make(chan error, 1)
				go func() {
					d.logger.Info("HTTP server listening.", "addr", addr, "provider", d.cfg.CalendarProvider)
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				d.logger.Info("Shutting down HTTP server.")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations. Requires DATABASE_URL.",
		Action: func(c *cli.Context) error {
			return withDeps(c, func(d *deps) error {
				if d.db == nil {
					return errors.New("DATABASE_URL is not set")
				}
				res, err := migrations.NewRunner(d.logger, d.db).Up(c.Context)
				if err != nil {
					return err
				}
				d.logger.Info("Migrations complete.", "applied", len(res.Applied), "skipped", len(res.Skipped))
				return nil
			})
		},
	}
}

func contactsCommand() *cli.Command {
	return &cli.Command{
		Name:  "contacts",
		Usage: "Manage the contact directory.",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Copy contacts from a YAML file into the Postgres directory.",
				ArgsUsage: "<contacts.yaml>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("exactly one contacts file is required")
					}
					file, err := contacts.LoadDirectoryFile(c.Args().First())
					if err != nil {
						return err
					}
					return withDeps(c, func(d *deps) error {
						if d.db == nil {
							return errors.New("DATABASE_URL is not set")
						}
						dir := store.NewPostgresDirectory(d.db)
						for _, contact := range file.Contacts() {
							added, err := dir.Add(c.Context, contact)
							if err != nil {
								return fmt.Errorf("failed to add contact %q: %w", contact.DisplayName, err)
							}
							d.logger.Debug("Added contact.", "id", added.ID, "name", added.DisplayName)
						}
						d.logger.Info("Imported contacts.", "count", len(file.Contacts()))
						return nil
					})
				},
			},
		},
	}
}

func readCommand(path string) (models.ParsedCommand, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.ParsedCommand{}, fmt.Errorf("unable to read command: %w", err)
	}
	var cmd models.ParsedCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return models.ParsedCommand{}, fmt.Errorf("unable to parse command JSON: %w", err)
	}
	return cmd, nil
}

// contactFlags turns --contact values into attendees. Values without an email are left
// for the directory.
func contactFlags(values []string) []models.ContactInfo {
	if len(values) == 0 {
		return nil
	}
	out := make([]models.ContactInfo, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, "@") {
			out = append(out, contacts.ParseAddress(v))
			continue
		}
		out = append(out, models.ContactInfo{Name: strings.TrimSpace(v)})
	}
	return out
}

func writeICSFile(ctx context.Context, d *deps, bookingRequestID, path string) error {
	events, err := d.bookedEvents(ctx, bookingRequestID)
	if err != nil {
		return fmt.Errorf("failed to load booked meetings: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", path, err)
	}
	if err := caldav.WriteICS(f, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
