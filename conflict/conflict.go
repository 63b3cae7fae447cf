// Package conflict picks deterministic winners when multiple extensions
// contend for the same slot, e.g. a resource override key.
package conflict

import (
	"log/slog"
	"sort"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Kind names a category of contention the resolver knows how to settle.
type Kind string

const (
	// KindResourceOverride is contention over a resource key.
	KindResourceOverride Kind = "resource_override"
	// KindHookPriority is contention between bindings sharing a
	// priority on the same hook point.
	KindHookPriority Kind = "hook_priority"
)

// Claim is one extension's stake in a contended slot.
type Claim struct {
	ExtensionID values.ExtensionID
	LoadOrder   int
	// Seq is the registration sequence, used to break load-order ties.
	Seq uint64
}

// Resolver settles claims by policy. The only built-in policy is
// precedence order: lowest load order wins, earliest registration
// breaks ties. Unknown kinds fail loudly rather than guessing.
type Resolver struct {
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a conflict resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve orders the claims by precedence and returns the winner.
// An unknown kind or an empty claim list is a ConflictError: the
// caller must escalate to manual resolution instead of proceeding.
func (r *Resolver) Resolve(kind Kind, claims []Claim) (Claim, []Claim, error) {
	switch kind {
	case KindResourceOverride, KindHookPriority:
	default:
		return Claim{}, nil, &entities.ConflictError{Kind: string(kind)}
	}
	if len(claims) == 0 {
		return Claim{}, nil, &entities.ConflictError{Kind: string(kind)}
	}

	ordered := Order(claims)
	winner, losers := ordered[0], ordered[1:]

	if len(losers) > 0 {
		r.logger.Warn("conflict resolved",
			"kind", string(kind),
			"winner", winner.ExtensionID.String(),
			"contenders", len(claims))
	}
	return winner, losers, nil
}

// Order returns the claims sorted by precedence: load order ascending,
// registration sequence ascending on ties. The input is not modified.
func Order(claims []Claim) []Claim {
	ordered := make([]Claim, len(claims))
	copy(ordered, claims)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].LoadOrder != ordered[j].LoadOrder {
			return ordered[i].LoadOrder < ordered[j].LoadOrder
		}
		return ordered[i].Seq < ordered[j].Seq
	})
	return ordered
}
