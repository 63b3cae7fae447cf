package values

import (
	"fmt"
	"strings"
)

// ResourceKey identifies a host-named resource by type and key,
// e.g. ("card", "ace") or ("sound", "shuffle"). Override precedence and
// fallback lookups are keyed by this pair.
type ResourceKey struct {
	resourceType string
	key          string
}

// NewResourceKey creates a ResourceKey. Both parts must be non-empty.
func NewResourceKey(resourceType, key string) (ResourceKey, error) {
	resourceType = strings.TrimSpace(resourceType)
	key = strings.TrimSpace(key)

	if resourceType == "" {
		return ResourceKey{}, fmt.Errorf("resource type cannot be empty")
	}
	if key == "" {
		return ResourceKey{}, fmt.Errorf("resource key cannot be empty")
	}
	if strings.Contains(resourceType, "/") {
		return ResourceKey{}, fmt.Errorf("resource type cannot contain %q", "/")
	}

	return ResourceKey{resourceType: resourceType, key: key}, nil
}

// MustNewResourceKey creates a ResourceKey or panics.
func MustNewResourceKey(resourceType, key string) ResourceKey {
	rk, err := NewResourceKey(resourceType, key)
	if err != nil {
		panic(err)
	}
	return rk
}

// Type returns the resource type.
func (r ResourceKey) Type() string {
	return r.resourceType
}

// Key returns the resource key within its type.
func (r ResourceKey) Key() string {
	return r.key
}

// String returns the canonical "type/key" form used in grant scopes
// and log lines.
func (r ResourceKey) String() string {
	return r.resourceType + "/" + r.key
}

// Equals checks equality with another resource key.
func (r ResourceKey) Equals(other ResourceKey) bool {
	return r.resourceType == other.resourceType && r.key == other.key
}
