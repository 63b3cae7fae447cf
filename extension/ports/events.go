package ports

import (
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// EventType enumerates the lifecycle events the runtime emits for host
// observability.
type EventType int

const (
	// EventExtensionRegistered is emitted after a successful register.
	EventExtensionRegistered EventType = iota
	// EventExtensionUnregistered is emitted after unregister completes.
	EventExtensionUnregistered
	// EventExtensionEnabled is emitted when an extension becomes Active.
	EventExtensionEnabled
	// EventExtensionDisabled is emitted when an extension is disabled,
	// including cascade-disables caused by a dependency going away.
	EventExtensionDisabled
	// EventExtensionQuarantined is emitted when the fault monitor trips.
	EventExtensionQuarantined
	// EventResourceConflict is emitted when two extensions claim the
	// same resource and the conflict resolver picks a winner.
	EventResourceConflict
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventExtensionRegistered:
		return "registered"
	case EventExtensionUnregistered:
		return "unregistered"
	case EventExtensionEnabled:
		return "enabled"
	case EventExtensionDisabled:
		return "disabled"
	case EventExtensionQuarantined:
		return "quarantined"
	case EventResourceConflict:
		return "resource_conflict"
	default:
		return "unknown"
	}
}

// Event is a single lifecycle notification.
type Event struct {
	Type        EventType
	ExtensionID values.ExtensionID
	Time        time.Time
	// Reason carries extra context, e.g. "dependency" on a cascade
	// disable or the conflict kind on EventResourceConflict.
	Reason string
	Err    error
}

// EventSink consumes lifecycle events. Implementations must be
// non-blocking and must not call back into the runtime.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(e Event) { f(e) }

// NopEventSink discards all events.
type NopEventSink struct{}

// Emit implements EventSink.
func (NopEventSink) Emit(Event) {}
