package entities

// LifecycleState tracks where an extension is in its lifecycle.
//
// Transitions:
//
//	Registered -> Active        (activate: dependencies satisfied, no cycle)
//	Active     -> Disabled      (disable)
//	Disabled   -> Active        (enable)
//	Active     -> Quarantined   (fault threshold exceeded)
//	Quarantined -> Disabled     (manual reset)
//	any        -> removed       (unregister, terminal)
type LifecycleState int

const (
	// StateRegistered means the descriptor is stored but the extension
	// has never been activated.
	StateRegistered LifecycleState = iota

	// StateActive means the extension's bindings and overrides are live.
	StateActive

	// StateDisabled means the extension was deliberately switched off;
	// its bindings are kept but skipped.
	StateDisabled

	// StateQuarantined means the fault monitor suspended the extension
	// after repeated errors. Only a manual reset leaves this state.
	StateQuarantined
)

// String returns a string representation of the state.
func (s LifecycleState) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	case StateQuarantined:
		return "quarantined"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition. Unregistration is allowed from any state and is
// not modeled here.
func (s LifecycleState) CanTransition(next LifecycleState) bool {
	switch s {
	case StateRegistered:
		return next == StateActive
	case StateActive:
		return next == StateDisabled || next == StateQuarantined
	case StateDisabled:
		return next == StateActive
	case StateQuarantined:
		return next == StateDisabled
	default:
		return false
	}
}
