package resolvers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/services"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
	"github.com/tabletop-dev/tabletop-host-sdk/parser"
)

// URLResolver downloads packages from direct HTTPS URLs and caches
// them. The downloaded document is the package file itself, so the
// manifest is parsed straight out of the payload.
type URLResolver struct {
	services.BaseResolver
	fetcher    ports.PackageFetcher
	repository ports.PackageRepository
	parser     parser.ManifestParser
	logger     *slog.Logger
}

// NewURLResolver creates a URL resolver.
func NewURLResolver(fetcher ports.PackageFetcher, repository ports.PackageRepository, manifestParser parser.ManifestParser, logger *slog.Logger) *URLResolver {
	return &URLResolver{
		fetcher:    fetcher,
		repository: repository,
		parser:     manifestParser,
		logger:     logger,
	}
}

// Resolve downloads a direct-URL package and stores it in the cache.
func (r *URLResolver) Resolve(ctx context.Context, ref values.PackageReference) (*entities.Package, error) {
	if !ref.IsURL() {
		return r.ResolveNext(ctx, ref)
	}
	r.logger.Info("downloading extension package", "url", ref.String())

	payload, err := r.fetcher.Fetch(ctx, ref.URL())
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	manifest, err := r.parser.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("parse downloaded package: %w", err)
	}

	digest := values.DigestBytes(payload)
	pkg := entities.NewPackage(ref.WithVersion(manifest.Version), digest, manifest, nil)

	if _, err := r.repository.Store(ctx, pkg, bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("cache storage failed: %w", err)
	}
	r.logger.Info("extension package cached", "ref", pkg.Reference().String(), "digest", digest.String())
	return pkg, nil
}
