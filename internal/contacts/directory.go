package contacts

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"meetbook/internal/models"
)

// directoryFile is the on-disk layout of a YAML contact directory.
type directoryFile struct {
	Contacts []models.Contact `yaml:"contacts"`
}

// StaticDirectory is an in-memory directory, usually loaded from a YAML file.
// Entries are searched in file order and the first match wins.
type StaticDirectory struct {
	contacts []models.Contact
}

func NewStaticDirectory(contacts []models.Contact) *StaticDirectory {
	return &StaticDirectory{contacts: contacts}
}

// LoadDirectoryFile reads a YAML contact directory:
//
//	contacts:
//	  - display_name: Alice Martin
//	    aliases: "Ali, AM"
//	    email: alice@example.com
func LoadDirectoryFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read contacts file: %w", err)
	}
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unable to parse contacts file %s: %w", path, err)
	}
	for i, c := range f.Contacts {
		if c.DisplayName == "" || c.Email == "" {
			return nil, fmt.Errorf("contact #%d in %s needs display_name and email", i+1, path)
		}
	}
	return NewStaticDirectory(f.Contacts), nil
}

// Lookup matches fragment case-sensitively as a substring of the display name or aliases.
// Case sensitivity is kept as found and is pending product review.
func (d *StaticDirectory) Lookup(_ context.Context, fragment string) (*models.Contact, error) {
	for i := range d.contacts {
		c := d.contacts[i]
		if strings.Contains(c.DisplayName, fragment) || strings.Contains(c.Aliases, fragment) {
			return &c, nil
		}
	}
	return nil, nil
}

// Contacts returns the directory entries in order.
func (d *StaticDirectory) Contacts() []models.Contact {
	return d.contacts
}
