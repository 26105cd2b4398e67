// Package calendar defines the contract between the booking flow and external calendar
// providers.
package calendar

import (
	"context"
	"errors"
	"fmt"

	"meetbook/internal/models"
)

// ErrAuthenticationRequired is returned when the provider has no usable credential.
var ErrAuthenticationRequired = errors.New("calendar not authenticated")

// ProviderError wraps any other failure reported by a calendar provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s calendar: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// EventRef identifies an event created on an external calendar. Link is empty when the
// provider has no shareable URL for it.
type EventRef struct {
	ID   string
	Link string
}

// Gateway creates events on an external calendar.
type Gateway interface {
	CreateEvent(ctx context.Context, event models.Event) (EventRef, error)
}

// Disabled is the gateway used when no provider is configured. Every call reports
// ErrAuthenticationRequired.
type Disabled struct{}

func (Disabled) CreateEvent(context.Context, models.Event) (EventRef, error) {
	return EventRef{}, ErrAuthenticationRequired
}
