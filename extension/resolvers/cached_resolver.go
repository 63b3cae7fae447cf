package resolvers

import (
	"context"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/services"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// CachedResolver serves packages from the local cache before anything
// touches the network.
type CachedResolver struct {
	services.BaseResolver
	repository ports.PackageRepository
}

// NewCachedResolver creates a cache resolver.
func NewCachedResolver(repository ports.PackageRepository) *CachedResolver {
	return &CachedResolver{repository: repository}
}

// Resolve checks the cache, otherwise delegates to the next resolver.
func (r *CachedResolver) Resolve(ctx context.Context, ref values.PackageReference) (*entities.Package, error) {
	pkg, _, err := r.repository.Find(ctx, ref)
	if err == nil {
		return pkg, nil
	}
	return r.ResolveNext(ctx, ref)
}
