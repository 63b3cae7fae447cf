// Package services holds the loader's domain services: the package
// resolution chain and integrity checking.
package services

import (
	"context"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// ResolutionStrategy locates a package for a reference. Resolvers form
// a chain of responsibility: cache first, then remote sources.
type ResolutionStrategy interface {
	// Resolve attempts to locate a package matching the reference.
	Resolve(ctx context.Context, ref values.PackageReference) (*entities.Package, error)

	// SetNext sets the next resolver in the chain.
	SetNext(next ResolutionStrategy)
}

// BaseResolver provides the common chain plumbing.
type BaseResolver struct {
	next ResolutionStrategy
}

// SetNext sets the next resolver in the chain.
func (b *BaseResolver) SetNext(next ResolutionStrategy) {
	b.next = next
}

// ResolveNext delegates to the next resolver, or fails with a
// PackageNotFoundError at the end of the chain.
func (b *BaseResolver) ResolveNext(ctx context.Context, ref values.PackageReference) (*entities.Package, error) {
	if b.next == nil {
		return nil, &entities.PackageNotFoundError{Reference: ref}
	}
	return b.next.Resolve(ctx, ref)
}
