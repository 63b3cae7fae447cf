package hostlib

import (
	"context"
	"sync"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
	"github.com/tabletop-dev/tabletop-host-sdk/policy"
)

// CapabilityChecker is the runtime's gate: every privileged operation
// asks it before any side effect happens. It holds each extension's
// effective grants (declared permissions, possibly narrowed or widened
// by the host) and delegates scoped decisions to the policy.
type CapabilityChecker struct {
	mu     sync.RWMutex
	grants map[values.ExtensionID]capability.Set
	scopes map[values.ExtensionID]policy.ScopeSet

	policy policy.Policy
}

// CapabilityCheckerOption configures a CapabilityChecker.
type CapabilityCheckerOption func(*CapabilityChecker)

// WithCheckerPolicy overrides the scoped-grant policy.
func WithCheckerPolicy(p policy.Policy) CapabilityCheckerOption {
	return func(c *CapabilityChecker) {
		if p != nil {
			c.policy = p
		}
	}
}

// NewCapabilityChecker creates an empty checker.
func NewCapabilityChecker(opts ...CapabilityCheckerOption) *CapabilityChecker {
	c := &CapabilityChecker{
		grants: make(map[values.ExtensionID]capability.Set),
		scopes: make(map[values.ExtensionID]policy.ScopeSet),
		policy: policy.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetGrants installs the extension's effective capability set, replacing
// any previous grants. Called when an extension is registered or when
// the host adjusts grants at runtime.
func (c *CapabilityChecker) SetGrants(id values.ExtensionID, grants capability.Set) {
	c.mu.Lock()
	c.grants[id] = grants.Clone()
	c.mu.Unlock()
}

// SetScopes limits the extension's grants to glob-scoped targets.
// Capabilities without scope entries stay unscoped.
func (c *CapabilityChecker) SetScopes(id values.ExtensionID, scopes policy.ScopeSet) {
	c.mu.Lock()
	c.scopes[id] = scopes
	c.mu.Unlock()
}

// Grants returns a copy of the extension's effective capability set.
func (c *CapabilityChecker) Grants(id values.ExtensionID) capability.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grants[id].Clone()
}

// Forget drops all grant state for an extension. Called on unregister.
func (c *CapabilityChecker) Forget(id values.ExtensionID) {
	c.mu.Lock()
	delete(c.grants, id)
	delete(c.scopes, id)
	c.mu.Unlock()
}

// Authorize checks that the extension holds cap. The operation string
// only labels the resulting error.
func (c *CapabilityChecker) Authorize(id values.ExtensionID, cap capability.Capability, operation string) error {
	c.mu.RLock()
	grants := c.grants[id]
	c.mu.RUnlock()

	if !grants.Has(cap) {
		return &entities.PermissionDeniedError{
			ID:         id,
			Capability: cap.String(),
			Operation:  operation,
		}
	}
	return nil
}

// AuthorizeTarget checks cap against a concrete target (for example a
// resource key) honoring any scope the grant carries.
func (c *CapabilityChecker) AuthorizeTarget(id values.ExtensionID, cap capability.Capability, target, operation string) error {
	c.mu.RLock()
	grants := c.grants[id]
	scopes := c.scopes[id]
	c.mu.RUnlock()

	if !grants.Has(cap) {
		return &entities.PermissionDeniedError{
			ID:         id,
			Capability: cap.String(),
			Operation:  operation,
		}
	}
	if scopes == nil {
		return nil
	}
	if _, scoped := scopes[cap]; !scoped {
		return nil
	}
	if !c.policy.Check(id.String(), scopes, cap, target) {
		return &entities.PermissionDeniedError{
			ID:         id,
			Capability: cap.String(),
			Operation:  operation,
		}
	}
	return nil
}

// Holds reports whether the extension has cap, without side effects.
func (c *CapabilityChecker) Holds(id values.ExtensionID, cap capability.Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grants[id].Has(cap)
}

// Context helpers for extension id propagation through host call chains.
type extensionContextKey struct{}

// WithExtensionID adds the acting extension's id to the context.
func WithExtensionID(ctx context.Context, id values.ExtensionID) context.Context {
	return context.WithValue(ctx, extensionContextKey{}, id)
}

// ExtensionIDFromContext retrieves the acting extension's id.
func ExtensionIDFromContext(ctx context.Context) (values.ExtensionID, bool) {
	id, ok := ctx.Value(extensionContextKey{}).(values.ExtensionID)
	return id, ok
}
