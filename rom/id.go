package rom

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxIDLen is the maximum length of an author or app id.
	MaxIDLen = 16
	// MaxNameLen is the maximum length of a human-readable name.
	MaxNameLen = 64
)

// AppID identifies one installed app within a VFS root.
type AppID struct {
	Author string
	App    string
}

func (id AppID) String() string {
	return id.Author + "." + id.App
}

// Validate checks both parts of the id.
func (id AppID) Validate() error {
	if err := ValidateID(id.Author); err != nil {
		return fmt.Errorf("author id: %w", err)
	}
	if err := ValidateID(id.App); err != nil {
		return fmt.Errorf("app id: %w", err)
	}
	return nil
}

// ParseAppID parses "author.app".
func ParseAppID(s string) (AppID, error) {
	author, app, ok := strings.Cut(s, ".")
	if !ok {
		return AppID{}, fmt.Errorf("app id %q must have the form author.app", s)
	}
	id := AppID{Author: author, App: app}
	if err := id.Validate(); err != nil {
		return AppID{}, err
	}
	return id, nil
}

// ValidateID checks an author or app id.
//
// Ids are 1..16 bytes of lowercase ASCII letters, digits and single dashes,
// not starting or ending with a dash.
func ValidateID(s string) error {
	if s == "" {
		return errors.New("id cannot be empty")
	}
	if len(s) > MaxIDLen {
		return fmt.Errorf("id is too long: %d > %d", len(s), MaxIDLen)
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return errors.New("id must not start or end with a dash")
	}
	if strings.Contains(s, "--") {
		return errors.New("id must not contain consecutive dashes")
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-' {
			continue
		}
		return fmt.Errorf("invalid character %q in id", char)
	}
	return nil
}

// ValidateName checks a human-readable name.
func ValidateName(s string) error {
	if s == "" {
		return errors.New("name cannot be empty")
	}
	if len(s) > MaxNameLen {
		return fmt.Errorf("name is too long: %d > %d", len(s), MaxNameLen)
	}
	for _, char := range s {
		if char < ' ' || char > '~' {
			return fmt.Errorf("invalid character %q in name", char)
		}
	}
	return nil
}
