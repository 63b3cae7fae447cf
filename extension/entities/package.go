package entities

import (
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Package is a validated extension package: the manifest plus the
// auxiliary files that shipped with it. Only packages that survived the
// loader's full validation pipeline exist as this type.
type Package struct {
	reference values.PackageReference
	digest    values.Digest
	manifest  *Manifest
	files     map[string][]byte
}

// NewPackage creates a package entity from validated parts.
func NewPackage(ref values.PackageReference, digest values.Digest, manifest *Manifest, files map[string][]byte) *Package {
	return &Package{
		reference: ref,
		digest:    digest,
		manifest:  manifest,
		files:     files,
	}
}

// Reference returns where the package came from.
func (p *Package) Reference() values.PackageReference {
	return p.reference
}

// Digest returns the package content hash.
func (p *Package) Digest() values.Digest {
	return p.digest
}

// Manifest returns the parsed manifest.
func (p *Package) Manifest() *Manifest {
	return p.manifest
}

// File returns a named auxiliary file from the package.
func (p *Package) File(name string) ([]byte, bool) {
	data, ok := p.files[name]
	return data, ok
}

// FileNames lists the auxiliary files shipped with the package.
func (p *Package) FileNames() []string {
	names := make([]string, 0, len(p.files))
	for name := range p.files {
		names = append(names, name)
	}
	return names
}

// VerifyIntegrity checks the package digest against an expected value.
func (p *Package) VerifyIntegrity(expected values.Digest) error {
	if !p.digest.Equals(expected) {
		return &IntegrityError{Expected: expected, Actual: p.digest}
	}
	return nil
}
