package entities

import (
	"fmt"
	"strings"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Declaration is a single extension entry from the host's install
// configuration: an alias plus where to fetch the package from.
type Declaration struct {
	// Alias is the name the host configuration uses for the extension.
	Alias string

	// Source is the package source string (bare id, URL, or OCI ref).
	Source string

	// Constraint is the semver constraint to resolve, empty for latest.
	Constraint string

	// Digest optionally pins the package content hash.
	Digest string

	// Verify requires a signature check before the package is accepted.
	Verify bool
}

// ParseDeclaration parses a declaration string.
// Supported formats:
//   - "weather"                                     latest local/registry
//   - "weather@1.2.0"                               pinned constraint
//   - "ghcr.io/tabletop/extensions/weather:1.2.0"   OCI reference
//   - "weather@sha256:abc..."                       digest pin
func ParseDeclaration(declaration string) (*Declaration, error) {
	if declaration == "" {
		return nil, fmt.Errorf("empty extension declaration")
	}

	d := &Declaration{Source: declaration}

	if idx := strings.Index(declaration, "@sha256:"); idx != -1 {
		d.Digest = declaration[idx+1:]
		declaration = declaration[:idx]
		d.Source = declaration
	}

	// Any remaining @ suffix is a version constraint.
	if idx := strings.LastIndex(declaration, "@"); idx != -1 {
		d.Constraint = declaration[idx+1:]
		declaration = declaration[:idx]
		d.Source = declaration
	}

	ref, err := values.ParsePackageReference(declaration)
	if err != nil {
		return nil, fmt.Errorf("invalid source in declaration: %w", err)
	}
	d.Alias = ref.Name()
	if d.Constraint == "" && ref.Version() != "" {
		d.Constraint = ref.Version()
	}

	return d, nil
}

// ParseDeclarationWithAlias parses a declaration carrying an explicit
// alias, either "alias: source" or an expanded map form.
func ParseDeclarationWithAlias(alias string, source any) (*Declaration, error) {
	if alias == "" {
		return nil, fmt.Errorf("extension alias cannot be empty")
	}

	switch v := source.(type) {
	case string:
		d, err := ParseDeclaration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid source for %q: %w", alias, err)
		}
		d.Alias = alias
		return d, nil

	case map[string]any:
		d := &Declaration{Alias: alias}

		src, ok := v["source"].(string)
		if !ok || src == "" {
			return nil, fmt.Errorf("extension %q: missing 'source' field", alias)
		}
		d.Source = src

		if constraint, ok := v["version"].(string); ok {
			d.Constraint = constraint
		}
		if digest, ok := v["digest"].(string); ok {
			d.Digest = digest
		}
		if verify, ok := v["verify"].(bool); ok {
			d.Verify = verify
		}
		return d, nil

	default:
		return nil, fmt.Errorf("extension %q: invalid source type %T", alias, source)
	}
}
