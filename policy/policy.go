package policy

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
)

// Ensure the default policy satisfies the interface.
var _ Policy = (*ScopePolicy)(nil)

// ScopePolicy is the default policy: a capability is covered when the
// scope set holds it (or the wildcard) and one of its patterns matches
// the target. Patterns use doublestar globs, so "card/**" covers every
// key under the card type and "*/config" covers one level.
type ScopePolicy struct {
	denial DenialHandler
}

// Option configures a ScopePolicy.
type Option func(*ScopePolicy)

// WithDenialHandler routes denials to the given handler.
func WithDenialHandler(h DenialHandler) Option {
	return func(p *ScopePolicy) {
		if h != nil {
			p.denial = h
		}
	}
}

// New creates a scope policy. Denials are discarded unless a handler
// is configured.
func New(opts ...Option) *ScopePolicy {
	p := &ScopePolicy{denial: &NopDenialHandler{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check implements Policy.
func (p *ScopePolicy) Check(extensionID string, scopes ScopeSet, cap capability.Capability, target string) bool {
	if p.Evaluate(scopes, cap, target) {
		return true
	}
	reason := "capability not granted"
	if _, ok := lookup(scopes, cap); ok {
		reason = "target outside granted scope"
	}
	p.denial.OnDenial(extensionID, cap, target, reason)
	return false
}

// Evaluate implements Policy.
func (p *ScopePolicy) Evaluate(scopes ScopeSet, cap capability.Capability, target string) bool {
	patterns, ok := lookup(scopes, cap)
	if !ok {
		return false
	}
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, target); err == nil && matched {
			return true
		}
	}
	return false
}

// lookup finds the patterns for cap, honoring a wildcard grant. A
// wildcard entry's own patterns still scope it.
func lookup(scopes ScopeSet, cap capability.Capability) ([]string, bool) {
	if patterns, ok := scopes[cap]; ok {
		return patterns, true
	}
	if patterns, ok := scopes[capability.CapabilityAll]; ok {
		return patterns, true
	}
	return nil, false
}
