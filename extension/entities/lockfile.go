package entities

import (
	"fmt"
	"time"
)

// Lockfile pins the host's installed extension set for reproducible
// startups: every entry records the resolved version and content digest.
//
// Invariants:
// - Each entry must have a digest
// - Generated timestamp must be set once entries exist
type Lockfile struct {
	Generated  time.Time
	Extensions map[string]ExtensionLock
	Version    int
}

// ExtensionLock is a value object pinning one extension.
// Immutable after creation.
type ExtensionLock struct {
	Fetched   time.Time
	Requested string // Original constraint (e.g. "^1.2")
	Resolved  string // Exact version fetched
	Source    string // Normalized source (bare id, URL, or OCI ref)
	Digest    string // Content hash (sha256:...)
}

// NewLockfile creates an empty lockfile at the current format version.
func NewLockfile() *Lockfile {
	return &Lockfile{
		Version:    1,
		Generated:  time.Now().UTC(),
		Extensions: make(map[string]ExtensionLock),
	}
}

// Add records a lock entry. Returns an error if the digest is empty.
func (l *Lockfile) Add(id string, lock ExtensionLock) error {
	if lock.Digest == "" {
		return fmt.Errorf("extension %q: digest is required", id)
	}
	if l.Extensions == nil {
		l.Extensions = make(map[string]ExtensionLock)
	}
	l.Extensions[id] = lock
	return nil
}

// Get retrieves a lock entry by id, nil if absent.
func (l *Lockfile) Get(id string) *ExtensionLock {
	if l.Extensions == nil {
		return nil
	}
	if lock, ok := l.Extensions[id]; ok {
		return &lock
	}
	return nil
}

// Count returns the number of locked extensions.
func (l *Lockfile) Count() int {
	return len(l.Extensions)
}

// Validate checks lockfile invariants.
func (l *Lockfile) Validate() error {
	if l.Count() > 0 && l.Generated.IsZero() {
		return fmt.Errorf("generated timestamp is required")
	}
	for id, lock := range l.Extensions {
		if lock.Digest == "" {
			return fmt.Errorf("extension %q: digest is required", id)
		}
	}
	return nil
}
