// Package extension implements the loader pipeline that turns install
// declarations into validated packages: resolution through the cache,
// URL and registry chain, digest and signature verification, and
// manifest schema validation.
package extension

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/dto"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/services"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
	"github.com/tabletop-dev/tabletop-host-sdk/validation"
)

// Service implements ports.Loader. It orchestrates the resolution
// chain and the integrity checks; the heavy lifting lives in the
// resolvers and adapters it is wired with.
type Service struct {
	resolver          services.ResolutionStrategy
	registry          ports.PackageRegistry
	repository        ports.PackageRepository
	integrityVerifier ports.IntegrityVerifier
	integrityService  *services.IntegrityService
	validator         validation.ManifestValidator
	logger            *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithResolver sets the head of the resolution chain.
func WithResolver(resolver services.ResolutionStrategy) ServiceOption {
	return func(s *Service) { s.resolver = resolver }
}

// WithRegistry sets the OCI registry adapter used for publishing.
func WithRegistry(registry ports.PackageRegistry) ServiceOption {
	return func(s *Service) { s.registry = registry }
}

// WithIntegrityVerifier sets the signature verifier.
func WithIntegrityVerifier(verifier ports.IntegrityVerifier) ServiceOption {
	return func(s *Service) { s.integrityVerifier = verifier }
}

// WithIntegrityService sets the integrity policy service.
func WithIntegrityService(integrity *services.IntegrityService) ServiceOption {
	return func(s *Service) { s.integrityService = integrity }
}

// WithValidator sets the manifest schema validator.
func WithValidator(validator validation.ManifestValidator) ServiceOption {
	return func(s *Service) { s.validator = validator }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a loader service backed by a local repository.
func NewService(repository ports.PackageRepository, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		repository:       repository,
		integrityService: services.NewIntegrityService(false),
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		return nil, fmt.Errorf("loader service requires a resolution chain")
	}
	return s, nil
}

// LoadPackage resolves a declaration to a validated package. The
// package comes back fully checked or not at all: digest mismatches,
// failed signature checks and schema violations all abort the load.
func (s *Service) LoadPackage(ctx context.Context, decl *entities.Declaration) (*entities.Package, error) {
	ref, err := values.ParsePackageReference(decl.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid package source %q: %w", decl.Source, err)
	}
	if decl.Constraint != "" && !ref.IsURL() && ref.Version() == "" {
		ref = ref.WithVersion(decl.Constraint)
	}

	s.logger.Info("loading extension package", "alias", decl.Alias, "ref", ref.String())

	pkg, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref.String(), err)
	}

	if decl.Digest != "" {
		expected, err := values.ParseDigest(decl.Digest)
		if err != nil {
			return nil, fmt.Errorf("invalid pinned digest for %s: %w", decl.Alias, err)
		}
		if err := s.integrityService.ValidatePackage(ctx, pkg, expected); err != nil {
			return nil, fmt.Errorf("package %s: %w", decl.Alias, err)
		}
		s.logger.Debug("digest verified", "alias", decl.Alias, "digest", expected.String())
	}

	if decl.Verify || s.integrityService.ShouldVerifySignature() {
		if err := s.verifySignature(ctx, pkg); err != nil {
			return nil, err
		}
	}

	if err := s.validateManifest(pkg); err != nil {
		return nil, err
	}

	s.logger.Info("extension package loaded",
		"alias", decl.Alias,
		"id", pkg.Manifest().ID,
		"version", pkg.Manifest().Version,
	)
	return pkg, nil
}

// PublishPackage pushes a package artifact to its OCI registry.
func (s *Service) PublishPackage(ctx context.Context, pkg *entities.Package, payload io.Reader) error {
	if s.registry == nil {
		return fmt.Errorf("no registry configured for publishing")
	}
	ref := pkg.Reference()
	if !ref.IsOCI() {
		return fmt.Errorf("publishing requires an OCI reference, got %s", ref.String())
	}

	if err := s.validateManifest(pkg); err != nil {
		return err
	}

	artifact := dto.NewPackageArtifactDTO(pkg, io.NopCloser(payload))
	if err := s.registry.Push(ctx, artifact); err != nil {
		return fmt.Errorf("publish %s: %w", ref.String(), err)
	}
	s.logger.Info("extension package published", "ref", ref.String())
	return nil
}

// ListCached returns all packages in the local cache.
func (s *Service) ListCached(ctx context.Context) ([]*entities.Package, error) {
	return s.repository.List(ctx)
}

// PruneCache removes old cached versions, keeping keepVersions per
// package name.
func (s *Service) PruneCache(ctx context.Context, keepVersions int) error {
	return s.repository.Prune(ctx, keepVersions)
}

func (s *Service) verifySignature(ctx context.Context, pkg *entities.Package) error {
	if s.integrityVerifier == nil {
		return fmt.Errorf("signature verification required for %s but no verifier configured", pkg.Reference().String())
	}
	result, err := s.integrityVerifier.VerifySignature(ctx, pkg.Reference())
	if err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", pkg.Reference().String(), err)
	}
	s.logger.Info("signature verified",
		"ref", pkg.Reference().String(),
		"signer", result.Signer,
		"tlog", result.TransparencyLog,
	)
	return nil
}

func (s *Service) validateManifest(pkg *entities.Package) error {
	if s.validator == nil {
		return nil
	}
	result, err := s.validator.Validate(pkg.Manifest())
	if err != nil {
		return fmt.Errorf("validate manifest for %s: %w", pkg.Reference().String(), err)
	}
	if !result.Valid {
		return fmt.Errorf("manifest for %s failed validation: %s",
			pkg.Reference().String(), strings.Join(result.Errors, "; "))
	}
	return nil
}
