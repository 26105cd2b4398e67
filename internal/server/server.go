// Package server exposes the booking flow over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"meetbook/internal/booking"
	"meetbook/internal/models"
	"meetbook/internal/store"
)

const stateCookie = "meetbook_oauth_state"

type Booker interface {
	Book(ctx context.Context, req booking.Request) (*models.BookingResult, error)
}

type Resolver interface {
	Resolve(ctx context.Context, people []string) (models.ContactResolution, error)
}

type BookingReader interface {
	GetBookingRequest(ctx context.Context, id string) (models.BookingRequest, error)
	ListMeetings(ctx context.Context, bookingRequestID string) ([]models.Meeting, error)
}

// GoogleAuth is the Google account connection used by the auth endpoints.
type GoogleAuth interface {
	IsAuthenticated() bool
	Disconnect() error
	AuthCodeURL(state string) string
	CompleteAuth(ctx context.Context, authCode string) error
}

// Deps are the collaborators behind the HTTP handlers. Auth may be nil when Google
// Calendar is not the configured provider.
type Deps struct {
	Booker   Booker
	Resolver Resolver
	Slots    booking.SlotGenerator
	Bookings BookingReader
	Auth     GoogleAuth
}

type Server struct {
	logger *slog.Logger
	deps   Deps
}

func New(logger *slog.Logger, deps Deps) *Server {
	return &Server{logger: logger, deps: deps}
}

// Handler builds the gin engine with all routes registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	{
		api.POST("/resolve-contacts", s.resolveContacts)
		api.POST("/slots", s.previewSlots)
		api.POST("/book", s.book)
		api.GET("/bookings/:id", s.getBooking)
	}

	auth := api.Group("/auth/google")
	{
		auth.GET("", s.startGoogleAuth)
		auth.GET("/callback", s.googleCallback)
		auth.GET("/status", s.googleStatus)
		auth.POST("/disconnect", s.googleDisconnect)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

func (s *Server) resolveContacts(c *gin.Context) {
	var input struct {
		People []string `json:"people"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.People == nil {
		fail(c, http.StatusBadRequest, "People array is required", err)
		return
	}

	res, err := s.deps.Resolver.Resolve(c.Request.Context(), input.People)
	if err != nil {
		s.logger.Error("Failed to resolve contacts", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to resolve contacts", err)
		return
	}
	ok(c, res)
}

func (s *Server) previewSlots(c *gin.Context) {
	var input struct {
		ParsedCommand models.ParsedCommand `json:"parsedCommand"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	slots, err := s.deps.Slots.Generate(input.ParsedCommand)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid parsed command", err)
		return
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	ok(c, gin.H{"count": len(slots), "slots": slots})
}

func (s *Server) book(c *gin.Context) {
	var input struct {
		ParsedCommand models.ParsedCommand `json:"parsedCommand"`
		Contacts      []models.ContactInfo `json:"contacts"`
		RawCommand    string               `json:"rawCommand"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := s.deps.Booker.Book(c.Request.Context(), booking.Request{
		Command:    input.ParsedCommand,
		RawCommand: input.RawCommand,
		Contacts:   input.Contacts,
	})
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			fail(c, http.StatusBadRequest, "Invalid parsed command", err)
			return
		}
		s.logger.Error("Error booking meetings", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to book meetings", err)
		return
	}
	ok(c, res)
}

func (s *Server) getBooking(c *gin.Context) {
	id := c.Param("id")
	br, err := s.deps.Bookings.GetBookingRequest(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "Booking not found", nil)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load booking", err)
		return
	}
	meetings, err := s.deps.Bookings.ListMeetings(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load meetings", err)
		return
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	ok(c, gin.H{"bookingRequest": br, "meetings": meetings})
}

func (s *Server) startGoogleAuth(c *gin.Context) {
	if s.deps.Auth == nil {
		fail(c, http.StatusNotFound, "Google Calendar is not the configured provider", nil)
		return
	}
	state := uuid.NewString()
	c.SetCookie(stateCookie, state, 600, "/api/auth/google", "", false, true)
	c.Redirect(http.StatusFound, s.deps.Auth.AuthCodeURL(state))
}

func (s *Server) googleCallback(c *gin.Context) {
	if s.deps.Auth == nil {
		fail(c, http.StatusNotFound, "Google Calendar is not the configured provider", nil)
		return
	}
	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || c.Query("state") != want {
		fail(c, http.StatusBadRequest, "Invalid OAuth state", nil)
		return
	}
	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "Authorization code is required", nil)
		return
	}
	if err := s.deps.Auth.CompleteAuth(c.Request.Context(), code); err != nil {
		s.logger.Error("Google authorization failed", "error", err)
		fail(c, http.StatusInternalServerError, "Failed to connect Google Calendar", err)
		return
	}
	c.SetCookie(stateCookie, "", -1, "/api/auth/google", "", false, true)
	ok(c, gin.H{"authenticated": true})
}

func (s *Server) googleStatus(c *gin.Context) {
	authenticated := s.deps.Auth != nil && s.deps.Auth.IsAuthenticated()
	ok(c, gin.H{"authenticated": authenticated})
}

func (s *Server) googleDisconnect(c *gin.Context) {
	if s.deps.Auth == nil {
		ok(c, gin.H{"authenticated": false})
		return
	}
	if err := s.deps.Auth.Disconnect(); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to disconnect Google Calendar", err)
		return
	}
	ok(c, gin.H{"authenticated": false})
}
