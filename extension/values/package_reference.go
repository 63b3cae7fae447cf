package values

import (
	"fmt"
	"strings"
)

// PackageReference identifies where an extension package comes from.
// Three source kinds are supported:
//   - local:   a bare id for a package the host links in directly
//   - https:   a direct download URL
//   - oci:     registry.io/org/repo/name:version
type PackageReference struct {
	registry string
	path     string
	name     string
	version  string
	url      string
}

// NewOCIReference creates a reference to an OCI-distributed package.
func NewOCIReference(registry, path, name, version string) PackageReference {
	return PackageReference{
		registry: registry,
		path:     path,
		name:     name,
		version:  version,
	}
}

// NewURLReference creates a reference to a direct-download package.
func NewURLReference(url, name, version string) PackageReference {
	return PackageReference{url: url, name: name, version: version}
}

// NewLocalReference creates a reference to a host-linked package.
func NewLocalReference(name string) PackageReference {
	return PackageReference{name: name}
}

// ParsePackageReference parses a package source string.
// Examples:
//   - weather                                  (local)
//   - https://ext.example.com/weather.pkg      (url)
//   - ghcr.io/tabletop/extensions/weather:1.2.0 (oci)
func ParsePackageReference(ref string) (PackageReference, error) {
	if ref == "" {
		return PackageReference{}, fmt.Errorf("empty package reference")
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		name := ref
		if idx := strings.LastIndex(name, "/"); idx != -1 {
			name = name[idx+1:]
		}
		name = strings.TrimSuffix(name, ".pkg")
		return PackageReference{url: ref, name: name}, nil
	}

	if !strings.Contains(ref, "/") {
		// Bare id, possibly with a :version tag.
		name, version, _ := strings.Cut(ref, ":")
		return PackageReference{name: name, version: version}, nil
	}

	// OCI reference: registry.io/path.../name:version
	slash := strings.Index(ref, "/")
	registry := ref[:slash]
	rest := ref[slash+1:]

	last := rest
	path := ""
	if idx := strings.LastIndex(rest, "/"); idx != -1 {
		path = rest[:idx]
		last = rest[idx+1:]
	}

	name, version, ok := strings.Cut(last, ":")
	if !ok {
		return PackageReference{}, fmt.Errorf("missing version tag in OCI reference: %s", ref)
	}
	if name == "" || version == "" {
		return PackageReference{}, fmt.Errorf("invalid OCI reference: %s", ref)
	}

	return PackageReference{
		registry: registry,
		path:     path,
		name:     name,
		version:  version,
	}, nil
}

// String returns the canonical reference string.
func (r PackageReference) String() string {
	switch {
	case r.IsURL():
		return r.url
	case r.IsLocal():
		if r.version != "" {
			return r.name + ":" + r.version
		}
		return r.name
	default:
		if r.path != "" {
			return fmt.Sprintf("%s/%s/%s:%s", r.registry, r.path, r.name, r.version)
		}
		return fmt.Sprintf("%s/%s:%s", r.registry, r.name, r.version)
	}
}

// IsLocal returns true for host-linked packages.
func (r PackageReference) IsLocal() bool {
	return r.registry == "" && r.url == ""
}

// IsURL returns true for direct-download packages.
func (r PackageReference) IsURL() bool {
	return r.url != ""
}

// IsOCI returns true for registry-distributed packages.
func (r PackageReference) IsOCI() bool {
	return r.registry != ""
}

// Path returns the repository path inside the OCI registry, empty for
// other kinds.
func (r PackageReference) Path() string {
	return r.path
}

// Name returns the package name.
func (r PackageReference) Name() string {
	return r.name
}

// Version returns the version tag, which may be empty for unpinned refs.
func (r PackageReference) Version() string {
	return r.version
}

// Registry returns the OCI registry hostname, empty for other kinds.
func (r PackageReference) Registry() string {
	return r.registry
}

// URL returns the download URL, empty for other kinds.
func (r PackageReference) URL() string {
	return r.url
}

// WithVersion returns a copy of the reference pinned to an exact version.
func (r PackageReference) WithVersion(version string) PackageReference {
	r.version = version
	return r
}

// Equals checks equality with another reference.
func (r PackageReference) Equals(other PackageReference) bool {
	return r == other
}
