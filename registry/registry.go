// Package registry holds the authoritative record of every extension
// known to the runtime: one descriptor per id, a monotonic registration
// sequence, and the lifecycle state machine guarding transitions.
package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Registry stores extension descriptors keyed by id. All methods are
// safe for concurrent use. Registration is all-or-nothing: a manifest
// that fails validation leaves no trace.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[values.ExtensionID]*entities.Descriptor
	order       []values.ExtensionID
	seq         uint64

	events ports.EventSink
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithEventSink routes lifecycle events to the given sink.
func WithEventSink(sink ports.EventSink) Option {
	return func(r *Registry) {
		if sink != nil {
			r.events = sink
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		descriptors: make(map[values.ExtensionID]*entities.Descriptor),
		events:      ports.NopEventSink{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates the manifest, builds a descriptor in the
// Registered state and stores it. Fails with a DuplicateIDError if the
// id is already taken; validation errors surface unchanged from
// entities.NewDescriptor.
func (r *Registry) Register(m *entities.Manifest) (*entities.Descriptor, error) {
	desc, err := entities.NewDescriptor(m)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.descriptors[desc.ID()]; exists {
		r.mu.Unlock()
		return nil, &entities.DuplicateIDError{ID: desc.ID()}
	}
	r.seq++
	desc.MarkRegistered(r.seq, r.now())
	r.descriptors[desc.ID()] = desc
	r.order = append(r.order, desc.ID())
	r.mu.Unlock()

	r.logger.Info("extension registered",
		"extension_id", desc.ID().String(),
		"version", desc.Version().String(),
		"load_order", desc.LoadOrder())
	r.events.Emit(ports.Event{
		Type:        ports.EventExtensionRegistered,
		ExtensionID: desc.ID(),
		Time:        r.now(),
	})
	return desc, nil
}

// Unregister removes the descriptor and returns it so the caller can
// cascade cleanup of bindings, overrides and sandbox state.
func (r *Registry) Unregister(id values.ExtensionID) (*entities.Descriptor, error) {
	r.mu.Lock()
	desc, ok := r.descriptors[id]
	if !ok {
		r.mu.Unlock()
		return nil, &entities.NotFoundError{ID: id}
	}
	delete(r.descriptors, id)
	for i, ordered := range r.order {
		if ordered.Equals(id) {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.logger.Info("extension unregistered", "extension_id", id.String())
	r.events.Emit(ports.Event{
		Type:        ports.EventExtensionUnregistered,
		ExtensionID: id,
		Time:        r.now(),
	})
	return desc, nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id values.ExtensionID) (*entities.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.descriptors[id]
	if !ok {
		return nil, &entities.NotFoundError{ID: id}
	}
	return desc, nil
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id values.ExtensionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[id]
	return ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []*entities.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}

// ListByState returns descriptors in the given state, sorted by
// load order ascending, id ascending on ties.
func (r *Registry) ListByState(state entities.LifecycleState) []*entities.Descriptor {
	r.mu.RLock()
	out := make([]*entities.Descriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		if desc.State() == state {
			out = append(out, desc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LoadOrder() != out[j].LoadOrder() {
			return out[i].LoadOrder() < out[j].LoadOrder()
		}
		return out[i].ID().Less(out[j].ID())
	})
	return out
}

// Transition moves an extension to the next lifecycle state, enforcing
// the state machine. Returns the descriptor after the transition.
func (r *Registry) Transition(id values.ExtensionID, next entities.LifecycleState) (*entities.Descriptor, error) {
	r.mu.Lock()
	desc, ok := r.descriptors[id]
	if !ok {
		r.mu.Unlock()
		return nil, &entities.NotFoundError{ID: id}
	}
	prev := desc.State()
	if err := desc.TransitionTo(next); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	r.logger.Debug("extension state changed",
		"extension_id", id.String(),
		"from", prev.String(),
		"to", next.String())
	return desc, nil
}

// Dependents returns the ids of registered extensions that declare id
// as a dependency, sorted by load order ascending, id ascending.
func (r *Registry) Dependents(id values.ExtensionID) []*entities.Descriptor {
	r.mu.RLock()
	out := make([]*entities.Descriptor, 0)
	for _, desc := range r.descriptors {
		for _, dep := range desc.Dependencies() {
			if dep.Equals(id) {
				out = append(out, desc)
				break
			}
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LoadOrder() != out[j].LoadOrder() {
			return out[i].LoadOrder() < out[j].LoadOrder()
		}
		return out[i].ID().Less(out[j].ID())
	})
	return out
}

// Count returns the number of registered extensions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
