package models

// ContactInfo is a resolved attendee.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Contact is a directory entry. Aliases is a free-text field searched alongside DisplayName.
type Contact struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Aliases     string `json:"aliases" yaml:"aliases"`
	Email       string `json:"email" yaml:"email"`
}

// ContactResolution separates resolved contacts from names that still need an email.
type ContactResolution struct {
	Resolved []ContactInfo `json:"resolved"`
	Unknown  []string      `json:"unknown"`
}
