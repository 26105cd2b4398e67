// Package contacts resolves free-text attendee identifiers to email addresses.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"meetbook/internal/models"
)

var (
	bracketedAddress = regexp.MustCompile(`^(.*?)<\s*([^<>\s@]+@[^<>\s@]+)\s*>`)
	bareAddress      = regexp.MustCompile(`[^<>\s@]+@[^<>\s@]+`)
)

// Directory looks contacts up by a fragment of their display name or aliases.
// Lookup returns nil, nil when nothing matches.
type Directory interface {
	Lookup(ctx context.Context, fragment string) (*models.Contact, error)
}

// Resolver maps attendee identifiers to contacts.
type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger, dir Directory) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

// Resolve partitions people into resolved contacts and unknown identifiers, both in input
// order. Identifiers containing "@" are always resolved from the text itself; all others
// are looked up in the directory one at a time.
func (r *Resolver) Resolve(ctx context.Context, people []string) (models.ContactResolution, error) {
	res := models.ContactResolution{
		Resolved: []models.ContactInfo{},
		Unknown:  []string{},
	}

	for _, person := range people {
		if strings.Contains(person, "@") {
			res.Resolved = append(res.Resolved, ParseAddress(person))
			continue
		}
		// A blank fragment would be a substring of every entry and match the first
		// contact. It is reported as unknown instead; kept for product review together
		// with the case-sensitive matching in Lookup.
		if strings.TrimSpace(person) == "" {
			res.Unknown = append(res.Unknown, person)
			continue
		}

		contact, err := r.dir.Lookup(ctx, person)
		if err != nil {
			return res, fmt.Errorf("failed to look up contact %q: %w", person, err)
		}
		if contact == nil {
			r.logger.Debug("No directory match for contact", "name", person)
			res.Unknown = append(res.Unknown, person)
			continue
		}
		res.Resolved = append(res.Resolved, models.ContactInfo{Name: contact.DisplayName, Email: contact.Email})
	}

	r.logger.Debug("Resolved contacts", "resolved", len(res.Resolved), "unknown", len(res.Unknown))
	return res, nil
}

// ParseAddress extracts a contact from text that contains an email address, such as
// "Alice <alice@example.com>" or "alice@example.com". Without a name in front of an
// angle-bracketed address, the local part of the address is used as the name.
func ParseAddress(s string) models.ContactInfo {
	s = strings.TrimSpace(s)

	if m := bracketedAddress.FindStringSubmatch(s); m != nil {
		email := m[2]
		name := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		if name == "" {
			name = localPart(email)
		}
		return models.ContactInfo{Name: name, Email: email}
	}

	email := s
	if m := bareAddress.FindString(s); m != "" {
		email = m
	}
	return models.ContactInfo{Name: localPart(email), Email: email}
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}
	return local
}
