// Package sandbox builds the constrained execution contexts extension
// callbacks run in: a namespaced logger, clamped tracked timers, and a
// read-only view of host state.
package sandbox

import (
	"log/slog"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Context is the only handle an extension callback gets on the host.
// One context exists per extension; the factory reuses it across
// invocations so timers registered in one callback survive to the next.
type Context struct {
	id     values.ExtensionID
	logger *slog.Logger
	timers *timerSet
	state  ports.HostStateProvider
}

// ExtensionID returns the owning extension's id.
func (c *Context) ExtensionID() values.ExtensionID {
	return c.id
}

// Logger returns a structured logger namespaced to the extension.
// Entries carry the extension id so host logs stay attributable.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// State returns a read-only view over the current host state snapshot.
// Each call observes the state as of that moment; the view itself never
// permits writes.
func (c *Context) State() *StateView {
	if c.state == nil {
		return NewStateView(map[string]any{})
	}
	return NewStateView(c.state.Snapshot())
}

// After schedules fn to run once after delay. Delays above
// MaxOneShotDelay are clamped down.
func (c *Context) After(delay time.Duration, fn func()) TimerHandle {
	return c.timers.After(delay, fn)
}

// Every schedules fn to run repeatedly at interval. Intervals below
// MinRepeatInterval are clamped up.
func (c *Context) Every(interval time.Duration, fn func()) TimerHandle {
	return c.timers.Every(interval, fn)
}

// ActiveTimers returns the number of live timers, for introspection.
func (c *Context) ActiveTimers() int {
	return c.timers.Len()
}
