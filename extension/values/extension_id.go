package values

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtensionID represents a validated extension identifier.
// IDs are the primary key of the registry and appear in log lines,
// grant files, and lockfiles, so they are restricted to a safe alphabet.
type ExtensionID struct {
	value string
}

// NewExtensionID creates an ExtensionID with strict validation.
// A valid id must:
// - Be non-empty after trimming
// - Contain only lowercase alphanumerics, underscores, hyphens, and dots
// - Not contain path separators or parent directory references
// - Be at most 64 characters long
func NewExtensionID(id string) (ExtensionID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ExtensionID{}, fmt.Errorf("extension id cannot be empty")
	}

	if len(id) > 64 {
		return ExtensionID{}, fmt.Errorf("extension id too long (max 64 chars)")
	}

	// IDs end up in file paths (grant store, package cache).
	if strings.ContainsAny(id, `/\`) {
		return ExtensionID{}, fmt.Errorf("extension id cannot contain path separators")
	}
	if strings.Contains(id, "..") {
		return ExtensionID{}, fmt.Errorf("extension id cannot contain parent directory references")
	}

	for _, ch := range id {
		if !isValidIDChar(ch) {
			return ExtensionID{}, fmt.Errorf("invalid extension id %q: must contain only lowercase alphanumerics, underscores, hyphens, and dots", id)
		}
	}

	return ExtensionID{value: id}, nil
}

func isValidIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') ||
		r == '_' ||
		r == '-' ||
		r == '.'
}

// MustNewExtensionID creates an ExtensionID or panics.
func MustNewExtensionID(id string) ExtensionID {
	eid, err := NewExtensionID(id)
	if err != nil {
		panic(err)
	}
	return eid
}

// String returns the string representation.
func (e ExtensionID) String() string {
	return e.value
}

// IsEmpty returns true if this is the zero value.
func (e ExtensionID) IsEmpty() bool {
	return e.value == ""
}

// Equals checks if two extension ids are equal.
func (e ExtensionID) Equals(other ExtensionID) bool {
	return e.value == other.value
}

// Less provides the ordering used for deterministic tie-breaking.
func (e ExtensionID) Less(other ExtensionID) bool {
	return e.value < other.value
}

// MarshalJSON implements json.Marshaler.
func (e ExtensionID) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *ExtensionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid extension id JSON: %w", err)
	}

	id, err := NewExtensionID(s)
	if err != nil {
		return err
	}
	*e = id
	return nil
}
