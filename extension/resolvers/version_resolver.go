// Package resolvers implements the loader's resolution chain: version
// constraint resolution plus cache, URL and registry package lookup.
package resolvers

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// SemverResolver implements ports.VersionResolver using
// Masterminds/semver.
type SemverResolver struct{}

// NewSemverResolver creates a new SemverResolver.
func NewSemverResolver() *SemverResolver {
	return &SemverResolver{}
}

// Resolve converts a version constraint to an exact version from the
// available options, returning the highest satisfying version.
// "latest" is treated as any version.
func (r *SemverResolver) Resolve(constraint string, available []string) (string, error) {
	raw := constraint
	if constraint == "latest" || constraint == "" {
		raw = ">= 0"
	}
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return "", fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}

	var valid []*semver.Version
	for _, vStr := range available {
		v, err := semver.NewVersion(vStr)
		if err != nil {
			continue // skip unparsable entries in the availability list
		}
		if c.Check(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return "", fmt.Errorf("no version satisfies constraint %q from available options", constraint)
	}

	sort.Sort(semver.Collection(valid))
	return valid[len(valid)-1].Original(), nil
}
