package filesystem

import (
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
)

// Lockfile is the YAML shape of a lockfile on disk.
type Lockfile struct {
	Generated  time.Time                `yaml:"generated"`
	Extensions map[string]ExtensionLock `yaml:"extensions"`
	Version    int                      `yaml:"lockfile_version"`
}

// ExtensionLock is a pinned extension version in YAML.
type ExtensionLock struct {
	Fetched   time.Time `yaml:"fetched,omitempty"`
	Requested string    `yaml:"requested"`
	Resolved  string    `yaml:"resolved"`
	Source    string    `yaml:"source"`
	Digest    string    `yaml:"sha256"`
}

// ToEntity converts the YAML lockfile to a domain entity.
func (l *Lockfile) ToEntity() *entities.Lockfile {
	entity := &entities.Lockfile{
		Generated:  l.Generated,
		Version:    l.Version,
		Extensions: make(map[string]entities.ExtensionLock, len(l.Extensions)),
	}
	for id, lock := range l.Extensions {
		entity.Extensions[id] = entities.ExtensionLock{
			Fetched:   lock.Fetched,
			Requested: lock.Requested,
			Resolved:  lock.Resolved,
			Source:    lock.Source,
			Digest:    lock.Digest,
		}
	}
	return entity
}

// FromEntity converts a domain lockfile to its YAML representation.
func FromEntity(entity *entities.Lockfile) *Lockfile {
	if entity == nil {
		return nil
	}
	l := &Lockfile{
		Generated:  entity.Generated,
		Version:    entity.Version,
		Extensions: make(map[string]ExtensionLock, len(entity.Extensions)),
	}
	for id, lock := range entity.Extensions {
		l.Extensions[id] = ExtensionLock{
			Fetched:   lock.Fetched,
			Requested: lock.Requested,
			Resolved:  lock.Resolved,
			Source:    lock.Source,
			Digest:    lock.Digest,
		}
	}
	return l
}
