// Package policy evaluates scoped capability grants against concrete
// targets, e.g. whether a state.modify grant scoped to "card/**" covers
// the resource key "card/goblin".
package policy

import (
	"github.com/tabletop-dev/tabletop-host-sdk/capability"
)

// ScopeSet maps a capability to the glob patterns its grant is limited
// to. An entry with no patterns is unscoped and covers every target.
// Capabilities absent from the set are not granted at all.
type ScopeSet map[capability.Capability][]string

// Policy decides whether a scoped grant covers a target.
type Policy interface {
	// Check evaluates and reports denials to the denial handler.
	Check(extensionID string, scopes ScopeSet, cap capability.Capability, target string) bool

	// Evaluate returns the decision without side effects.
	Evaluate(scopes ScopeSet, cap capability.Capability, target string) bool
}

// DenialHandler is called when a policy check denies a request.
type DenialHandler interface {
	OnDenial(extensionID string, cap capability.Capability, target string, reason string)
}
