// Package capability defines the permission model for extensions.
// An extension declares the capabilities it needs in its manifest; every
// privileged host operation is checked against that set before any side
// effect occurs.
package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Capability names a permission an extension must hold to perform a
// privileged operation.
type Capability string

const (
	// CapabilityModifyState allows mutating shared host game state.
	CapabilityModifyState Capability = "state.modify"

	// CapabilityCreateEntities allows creating domain entities (cards,
	// tokens, zones).
	CapabilityCreateEntities Capability = "entities.create"

	// CapabilityRegisterUI allows contributing UI panels and widgets.
	CapabilityRegisterUI Capability = "ui.register"

	// CapabilityDispatchEvents allows dispatching global host events.
	CapabilityDispatchEvents Capability = "events.dispatch"

	// CapabilityOverrideResources allows shadowing host-named resources
	// through the override table.
	CapabilityOverrideResources Capability = "resources.override"

	// CapabilityAll is the wildcard: it implies every other capability.
	// Granting it should be reserved for first-party extensions.
	CapabilityAll Capability = "*"
)

var known = map[Capability]struct{}{
	CapabilityModifyState:       {},
	CapabilityCreateEntities:    {},
	CapabilityRegisterUI:        {},
	CapabilityDispatchEvents:    {},
	CapabilityOverrideResources: {},
	CapabilityAll:               {},
}

// Parse validates a capability name.
func Parse(s string) (Capability, error) {
	c := Capability(strings.TrimSpace(s))
	if _, ok := known[c]; !ok {
		return "", fmt.Errorf("unknown capability: %q", s)
	}
	return c, nil
}

// IsValid reports whether the capability is known.
func (c Capability) IsValid() bool {
	_, ok := known[c]
	return ok
}

// String returns the capability name.
func (c Capability) String() string {
	return string(c)
}

// All returns every known capability except the wildcard, sorted.
func All() []Capability {
	caps := make([]Capability, 0, len(known)-1)
	for c := range known {
		if c != CapabilityAll {
			caps = append(caps, c)
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}
