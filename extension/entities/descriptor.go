// Package entities contains domain entities for the extension runtime.
package entities

import (
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Descriptor is the aggregate root for a registered extension. It is
// created from a validated manifest on register and destroyed on
// unregister; hook bindings and resource overrides cascade with it.
// Every field but state is immutable once the registry publishes the
// descriptor; state carries its own lock so State and TransitionTo are
// safe from any goroutine holding the shared pointer.
type Descriptor struct {
	id           values.ExtensionID
	displayName  string
	version      *semver.Version
	author       string
	apiVersion   string
	permissions  capability.Set
	dependencies []values.ExtensionID
	loadOrder    int
	seq          uint64
	registeredAt time.Time

	mu    sync.RWMutex
	state LifecycleState
}

// NewDescriptor validates a manifest and builds a descriptor in the
// Registered state. Validation is all-or-nothing: on any error no
// descriptor exists. Id uniqueness is the registry's concern, not ours.
func NewDescriptor(m *Manifest) (*Descriptor, error) {
	if m == nil {
		return nil, &MissingFieldError{Field: "manifest"}
	}
	if m.ID == "" {
		return nil, &MissingFieldError{Field: "id"}
	}
	if m.DisplayName == "" {
		return nil, &MissingFieldError{Field: "displayName"}
	}
	if m.Version == "" {
		return nil, &MissingFieldError{Field: "version"}
	}
	if m.Author == "" {
		return nil, &MissingFieldError{Field: "author"}
	}
	if m.APIVersion == "" {
		return nil, &MissingFieldError{Field: "apiVersion"}
	}

	id, err := values.NewExtensionID(m.ID)
	if err != nil {
		return nil, err
	}

	version, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return nil, &InvalidVersionError{ID: m.ID, Version: m.Version, Cause: err}
	}

	permissions, err := capability.ParseSet(m.Permissions)
	if err != nil {
		return nil, err
	}

	dependencies := make([]values.ExtensionID, 0, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		depID, err := values.NewExtensionID(dep)
		if err != nil {
			return nil, err
		}
		dependencies = append(dependencies, depID)
	}

	return &Descriptor{
		id:           id,
		displayName:  m.DisplayName,
		version:      version,
		author:       m.Author,
		apiVersion:   m.APIVersion,
		permissions:  permissions,
		dependencies: dependencies,
		loadOrder:    m.LoadOrder,
		state:        StateRegistered,
	}, nil
}

// ID returns the extension's unique identifier.
func (d *Descriptor) ID() values.ExtensionID {
	return d.id
}

// DisplayName returns the human-readable name.
func (d *Descriptor) DisplayName() string {
	return d.displayName
}

// Version returns the extension's semantic version.
func (d *Descriptor) Version() *semver.Version {
	return d.version
}

// Author returns the publisher.
func (d *Descriptor) Author() string {
	return d.author
}

// APIVersion returns the host API constraint the extension targets.
func (d *Descriptor) APIVersion() string {
	return d.apiVersion
}

// Permissions returns the declared capability set.
func (d *Descriptor) Permissions() capability.Set {
	return d.permissions
}

// Dependencies returns the ids this extension requires Active.
func (d *Descriptor) Dependencies() []values.ExtensionID {
	out := make([]values.ExtensionID, len(d.dependencies))
	copy(out, d.dependencies)
	return out
}

// LoadOrder returns the deterministic tie-break integer.
func (d *Descriptor) LoadOrder() int {
	return d.loadOrder
}

// State returns the current lifecycle state.
func (d *Descriptor) State() LifecycleState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Seq returns the registration sequence number assigned by the registry.
func (d *Descriptor) Seq() uint64 {
	return d.seq
}

// RegisteredAt returns the registration timestamp.
func (d *Descriptor) RegisteredAt() time.Time {
	return d.registeredAt
}

// MarkRegistered stamps the registry-assigned sequence and timestamp.
func (d *Descriptor) MarkRegistered(seq uint64, at time.Time) {
	d.seq = seq
	d.registeredAt = at
}

// TransitionTo moves the descriptor to the next lifecycle state,
// rejecting transitions the state machine does not allow.
func (d *Descriptor) TransitionTo(next LifecycleState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.CanTransition(next) {
		return &InvalidTransitionError{ID: d.id, From: d.state, To: next}
	}
	d.state = next
	return nil
}
