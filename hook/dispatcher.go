// Package hook routes host lifecycle events to extension callbacks in
// a stable, fault-contained order.
package hook

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
	"github.com/tabletop-dev/tabletop-host-sdk/sandbox"
)

// Binding is one callback attached to a hook point.
type Binding struct {
	ExtensionID values.ExtensionID
	HookName    string
	Priority    int
	Seq         uint64
	Enabled     bool

	invoke sandbox.Invoker
}

// Dispatcher holds the binding table and fires hook points. All methods
// are safe for concurrent use; Fire iterates a snapshot taken under the
// read lock, so bindings added mid-dispatch join the next Fire.
type Dispatcher struct {
	mu       sync.RWMutex
	bindings map[string][]*Binding
	seq      uint64

	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		bindings: make(map[string][]*Binding),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register attaches an invoker to a hook point. Bindings fire in
// priority ascending order; equal priorities fire in registration
// order. The caller is responsible for gating on lifecycle state and
// capability before registering.
func (d *Dispatcher) Register(id values.ExtensionID, hookName string, priority int, invoke sandbox.Invoker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	binding := &Binding{
		ExtensionID: id,
		HookName:    hookName,
		Priority:    priority,
		Seq:         d.seq,
		Enabled:     true,
		invoke:      invoke,
	}
	list := append(d.bindings[hookName], binding)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].Seq < list[j].Seq
	})
	d.bindings[hookName] = list
}

// Fire dispatches the hook point. Each enabled binding receives a
// shallow copy of the accumulated payload; whatever map it returns is
// shallow-merged back, a nil return changes nothing, and a failing
// binding is skipped so the next one sees the pre-failure payload.
// Returns the final payload.
func (d *Dispatcher) Fire(hookName string, payload map[string]any) map[string]any {
	d.mu.RLock()
	snapshot := make([]*Binding, 0, len(d.bindings[hookName]))
	for _, b := range d.bindings[hookName] {
		if b.Enabled {
			snapshot = append(snapshot, b)
		}
	}
	d.mu.RUnlock()

	acc := clone(payload)
	for _, b := range snapshot {
		result, err := b.invoke(clone(acc))
		if err != nil {
			// Already reported before reaching the dispatcher;
			// dispatch continues with the pre-failure payload.
			d.logger.Debug("binding failed, continuing dispatch",
				"hook", hookName,
				"extension_id", b.ExtensionID.String())
			continue
		}
		for k, v := range result {
			acc[k] = v
		}
	}
	return acc
}

// Unbind removes the extension's bindings on one hook point.
func (d *Dispatcher) Unbind(id values.ExtensionID, hookName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings[hookName] = removeFor(d.bindings[hookName], id)
	if len(d.bindings[hookName]) == 0 {
		delete(d.bindings, hookName)
	}
}

// RemoveFor removes every binding the extension holds, across all hook
// points. Called on unregister.
func (d *Dispatcher) RemoveFor(id values.ExtensionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, list := range d.bindings {
		filtered := removeFor(list, id)
		if len(filtered) == 0 {
			delete(d.bindings, name)
		} else {
			d.bindings[name] = filtered
		}
	}
}

// SetEnabledFor flips every binding the extension holds. Disabled
// bindings keep their position and priority; re-enabling restores them
// without re-registration.
func (d *Dispatcher) SetEnabledFor(id values.ExtensionID, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, list := range d.bindings {
		for _, b := range list {
			if b.ExtensionID.Equals(id) {
				b.Enabled = enabled
			}
		}
	}
}

// Bindings returns a copy of the binding metadata for a hook point, in
// fire order.
func (d *Dispatcher) Bindings(hookName string) []Binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Binding, 0, len(d.bindings[hookName]))
	for _, b := range d.bindings[hookName] {
		out = append(out, *b)
	}
	return out
}

// BindingsFor returns the binding metadata an extension holds across
// all hook points, sorted by hook name then fire order.
func (d *Dispatcher) BindingsFor(id values.ExtensionID) []Binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Binding
	for _, list := range d.bindings {
		for _, b := range list {
			if b.ExtensionID.Equals(id) {
				out = append(out, *b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HookName != out[j].HookName {
			return out[i].HookName < out[j].HookName
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Hooks returns the hook points with at least one binding, sorted.
func (d *Dispatcher) Hooks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.bindings))
	for name := range d.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func removeFor(list []*Binding, id values.ExtensionID) []*Binding {
	filtered := list[:0]
	for _, b := range list {
		if !b.ExtensionID.Equals(id) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
