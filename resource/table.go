// Package resource maintains the override table: extension-supplied
// replacements for host resources, with deterministic precedence and
// transparent fallback to the host's originals.
package resource

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/conflict"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Override is one extension's replacement payload for a resource key.
type Override struct {
	ExtensionID values.ExtensionID
	Key         values.ResourceKey
	Payload     any
	LoadOrder   int
	Seq         uint64
}

// ActivityChecker reports whether an extension's overrides should be
// visible. The runtime backs this with lifecycle state: only Active
// extensions serve overrides.
type ActivityChecker interface {
	IsActive(id values.ExtensionID) bool
}

// ActivityCheckerFunc adapts a function to the ActivityChecker interface.
type ActivityCheckerFunc func(values.ExtensionID) bool

// IsActive implements ActivityChecker.
func (f ActivityCheckerFunc) IsActive(id values.ExtensionID) bool { return f(id) }

// Table maps resource keys to override stacks. The head of each stack
// is the winning override; shadowed claims stay behind it and promote
// automatically when the winner's extension goes away. Reads fall back
// to the host's original resource when no visible override exists.
type Table struct {
	mu        sync.RWMutex
	overrides map[values.ResourceKey][]*Override

	activity ActivityChecker
	original ports.OriginalResourceProvider
	resolver *conflict.Resolver
	schemas  *SchemaRegistry
	events   ports.EventSink
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithSchemaRegistry enables payload validation for types with a
// registered schema.
func WithSchemaRegistry(schemas *SchemaRegistry) Option {
	return func(t *Table) { t.schemas = schemas }
}

// WithEventSink routes conflict events to the given sink.
func WithEventSink(sink ports.EventSink) Option {
	return func(t *Table) {
		if sink != nil {
			t.events = sink
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates an override table. original may be nil when the host has
// no base resources; activity may be nil to treat every override as
// visible.
func New(activity ActivityChecker, original ports.OriginalResourceProvider, resolver *conflict.Resolver, opts ...Option) *Table {
	t := &Table{
		overrides: make(map[values.ResourceKey][]*Override),
		activity:  activity,
		original:  original,
		resolver:  resolver,
		events:    ports.NopEventSink{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set records an extension's override for a key. A second override by
// the same extension replaces its first. When several extensions claim
// the same key the conflict resolver orders them; losers are kept
// shadowed and a conflict event is emitted. The caller authorizes the
// write before calling.
func (t *Table) Set(id values.ExtensionID, loadOrder int, seq uint64, key values.ResourceKey, payload any) error {
	if t.schemas != nil {
		if err := t.schemas.Validate(key.Type(), payload); err != nil {
			return err
		}
	}

	override := &Override{
		ExtensionID: id,
		Key:         key,
		Payload:     payload,
		LoadOrder:   loadOrder,
		Seq:         seq,
	}

	t.mu.Lock()
	stack := t.overrides[key]
	replaced := false
	for i, existing := range stack {
		if existing.ExtensionID.Equals(id) {
			stack[i] = override
			replaced = true
			break
		}
	}
	if !replaced {
		stack = append(stack, override)
	}

	contended := len(stack) > 1
	var winner values.ExtensionID
	if contended {
		claims := make([]conflict.Claim, len(stack))
		for i, o := range stack {
			claims[i] = conflict.Claim{ExtensionID: o.ExtensionID, LoadOrder: o.LoadOrder, Seq: o.Seq}
		}
		won, _, err := t.resolver.Resolve(conflict.KindResourceOverride, claims)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		winner = won.ExtensionID
		byID := make(map[values.ExtensionID]*Override, len(stack))
		for _, o := range stack {
			byID[o.ExtensionID] = o
		}
		ordered := conflict.Order(claims)
		stack = stack[:0]
		for _, c := range ordered {
			stack = append(stack, byID[c.ExtensionID])
		}
	}
	t.overrides[key] = stack
	t.mu.Unlock()

	if contended && !replaced {
		t.logger.Warn("resource override conflict",
			"key", key.String(),
			"winner", winner.String(),
			"claimant", id.String())
		t.events.Emit(ports.Event{
			Type:        ports.EventResourceConflict,
			ExtensionID: id,
			Time:        t.now(),
			Reason:      key.String(),
		})
	}
	return nil
}

// Get returns the resource visible at key: the highest-precedence
// override whose extension is active, else the host's original.
func (t *Table) Get(key values.ResourceKey) (any, bool) {
	t.mu.RLock()
	var payload any
	found := false
	for _, o := range t.overrides[key] {
		if t.visible(o.ExtensionID) {
			payload = o.Payload
			found = true
			break
		}
	}
	t.mu.RUnlock()

	if found {
		return payload, true
	}
	if t.original != nil {
		return t.original.OriginalResource(key)
	}
	return nil, false
}

// Original bypasses the override table and returns the host's own
// resource for key.
func (t *Table) Original(key values.ResourceKey) (any, bool) {
	if t.original == nil {
		return nil, false
	}
	return t.original.OriginalResource(key)
}

// Overrides returns the full stack for a key in precedence order,
// winner first, including shadowed and inactive claims.
func (t *Table) Overrides(key values.ResourceKey) []Override {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Override, 0, len(t.overrides[key]))
	for _, o := range t.overrides[key] {
		out = append(out, *o)
	}
	return out
}

// OverridesFor returns every override an extension holds, sorted by key.
func (t *Table) OverridesFor(id values.ExtensionID) []Override {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Override
	for _, stack := range t.overrides {
		for _, o := range stack {
			if o.ExtensionID.Equals(id) {
				out = append(out, *o)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Remove drops an extension's override on one key. Shadowed claims
// promote automatically since precedence order is preserved.
func (t *Table) Remove(id values.ExtensionID, key values.ResourceKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[key] = drop(t.overrides[key], id)
	if len(t.overrides[key]) == 0 {
		delete(t.overrides, key)
	}
}

// RemoveFor drops every override an extension holds. Called on
// unregister; disable does not call this, since shadowed retention is
// what lets a re-enabled extension's overrides reappear.
func (t *Table) RemoveFor(id values.ExtensionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, stack := range t.overrides {
		filtered := drop(stack, id)
		if len(filtered) == 0 {
			delete(t.overrides, key)
		} else {
			t.overrides[key] = filtered
		}
	}
}

// Keys returns every key with at least one override, sorted.
func (t *Table) Keys() []values.ResourceKey {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]values.ResourceKey, 0, len(t.overrides))
	for key := range t.overrides {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func (t *Table) visible(id values.ExtensionID) bool {
	if t.activity == nil {
		return true
	}
	return t.activity.IsActive(id)
}

func drop(stack []*Override, id values.ExtensionID) []*Override {
	filtered := stack[:0]
	for _, o := range stack {
		if !o.ExtensionID.Equals(id) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}
