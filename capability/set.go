package capability

import (
	"sort"
)

// Set is an unordered collection of capabilities. The zero value is an
// empty set and is safe to read.
type Set struct {
	caps map[Capability]struct{}
}

// NewSet creates a set from the given capabilities.
func NewSet(caps ...Capability) Set {
	s := Set{caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		s.caps[c] = struct{}{}
	}
	return s
}

// ParseSet validates and collects capability names into a set.
func ParseSet(names []string) (Set, error) {
	s := Set{caps: make(map[Capability]struct{}, len(names))}
	for _, name := range names {
		c, err := Parse(name)
		if err != nil {
			return Set{}, err
		}
		s.caps[c] = struct{}{}
	}
	return s, nil
}

// Has reports whether the set contains the capability, either directly
// or through the wildcard.
func (s Set) Has(c Capability) bool {
	if s.caps == nil {
		return false
	}
	if _, ok := s.caps[CapabilityAll]; ok {
		return true
	}
	_, ok := s.caps[c]
	return ok
}

// HasExactly reports direct membership, ignoring the wildcard.
func (s Set) HasExactly(c Capability) bool {
	if s.caps == nil {
		return false
	}
	_, ok := s.caps[c]
	return ok
}

// Add returns a copy of the set with the capability added.
func (s Set) Add(c Capability) Set {
	out := s.Clone()
	out.caps[c] = struct{}{}
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := Set{caps: make(map[Capability]struct{}, len(s.caps))}
	for c := range s.caps {
		out.caps[c] = struct{}{}
	}
	return out
}

// Union returns the combination of two sets.
func (s Set) Union(other Set) Set {
	out := s.Clone()
	for c := range other.caps {
		out.caps[c] = struct{}{}
	}
	return out
}

// Difference returns the capabilities in s that other does not hold
// (wildcard in other absorbs everything).
func (s Set) Difference(other Set) Set {
	out := Set{caps: make(map[Capability]struct{})}
	for c := range s.caps {
		if !other.Has(c) {
			out.caps[c] = struct{}{}
		}
	}
	return out
}

// IsEmpty reports whether the set holds no capabilities.
func (s Set) IsEmpty() bool {
	return len(s.caps) == 0
}

// Len returns the number of capabilities held directly.
func (s Set) Len() int {
	return len(s.caps)
}

// List returns the capabilities in sorted order, for deterministic
// serialization and logging.
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted capability names.
func (s Set) Strings() []string {
	caps := s.List()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
