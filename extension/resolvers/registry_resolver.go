package resolvers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/services"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// RegistryResolver pulls packages from OCI registries and caches them.
type RegistryResolver struct {
	services.BaseResolver
	registry   ports.PackageRegistry
	repository ports.PackageRepository
	logger     *slog.Logger
}

// NewRegistryResolver creates a registry resolver.
func NewRegistryResolver(registry ports.PackageRegistry, repository ports.PackageRepository, logger *slog.Logger) *RegistryResolver {
	return &RegistryResolver{
		registry:   registry,
		repository: repository,
		logger:     logger,
	}
}

// Resolve pulls from the registry and stores the artifact in the cache.
func (r *RegistryResolver) Resolve(ctx context.Context, ref values.PackageReference) (*entities.Package, error) {
	if !ref.IsOCI() {
		return r.ResolveNext(ctx, ref)
	}
	r.logger.Info("pulling extension package from registry", "ref", ref.String())

	artifact, err := r.registry.Pull(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("registry pull failed: %w", err)
	}
	defer func() {
		if cerr := artifact.Close(); cerr != nil {
			r.logger.Warn("failed to close artifact", "ref", ref.String(), "error", cerr)
		}
	}()

	if _, err := r.repository.Store(ctx, artifact.Package, artifact.Payload); err != nil {
		return nil, fmt.Errorf("cache storage failed: %w", err)
	}
	r.logger.Info("extension package cached", "ref", ref.String())
	return artifact.Package, nil
}
