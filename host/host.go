// Package host assembles a ready-to-run extension host: the runtime,
// the loader pipeline, the lockfile service and the capability
// gatekeeper, all configured from the environment.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	hostlib "github.com/tabletop-dev/tabletop-host-sdk"
	"github.com/tabletop-dev/tabletop-host-sdk/capability"
	"github.com/tabletop-dev/tabletop-host-sdk/capability/gatekeeper"
	"github.com/tabletop-dev/tabletop-host-sdk/capability/grantstore"
	"github.com/tabletop-dev/tabletop-host-sdk/extension"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/filesystem"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/oci"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/repository"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/resolvers"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/services"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/signing"
	"github.com/tabletop-dev/tabletop-host-sdk/parser"
	"github.com/tabletop-dev/tabletop-host-sdk/validation"
)

// Host ties the extension runtime to its collaborators. Installation
// flows through the loader and the gatekeeper; everything after that
// is the runtime's business.
type Host struct {
	runtime    *hostlib.Runtime
	loader     *extension.Service
	lockfiles  *extension.LockfileService
	gatekeeper *gatekeeper.Gatekeeper
	config     hostlib.RuntimeConfig
	logger     *slog.Logger
}

// New assembles a host from the environment plus options.
func New(opts ...Option) (*Host, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return nil, err
	}

	logger := c.logger
	if logger == nil {
		level, _ := cfg.SlogLevel()
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	repo, err := repository.NewFSRepository(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("extension cache: %w", err)
	}

	loader, err := buildLoader(c, cfg, repo, logger)
	if err != nil {
		return nil, err
	}

	lockfiles := extension.NewLockfileService(
		filesystem.NewFileLockfileRepository(),
		resolvers.NewSemverResolver(),
		loader,
		repo,
	)

	keeper := c.gatekeeper
	if keeper == nil {
		keeper = gatekeeper.NewGatekeeper(
			gatekeeper.WithStore(grantstore.NewFileStore(grantstore.WithPath(cfg.GrantsPath))),
		)
	}

	runtimeOpts := []hostlib.RuntimeOption{
		hostlib.WithRuntimeConfig(cfg),
		hostlib.WithLogger(logger),
		hostlib.WithLoader(loader),
	}
	if c.events != nil {
		runtimeOpts = append(runtimeOpts, hostlib.WithEventSink(c.events))
	}
	if c.hostState != nil {
		runtimeOpts = append(runtimeOpts, hostlib.WithHostState(c.hostState))
	}
	if c.originals != nil {
		runtimeOpts = append(runtimeOpts, hostlib.WithOriginalResources(c.originals))
	}
	if c.schemas != nil {
		runtimeOpts = append(runtimeOpts, hostlib.WithSchemaRegistry(c.schemas))
	}
	if len(c.middlewares) > 0 {
		runtimeOpts = append(runtimeOpts, hostlib.WithMiddleware(c.middlewares...))
	}
	if c.apiVersion != "" {
		runtimeOpts = append(runtimeOpts, hostlib.WithAPIVersion(c.apiVersion))
	}

	runtime, err := hostlib.NewRuntime(runtimeOpts...)
	if err != nil {
		return nil, err
	}

	return &Host{
		runtime:    runtime,
		loader:     loader,
		lockfiles:  lockfiles,
		gatekeeper: keeper,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Install loads one extension declaration, runs the gatekeeper over
// its declared permissions, and registers it. The extension ends up
// Registered; call Activate (or InstallAll) to bring it live.
func (h *Host) Install(ctx context.Context, declaration string) (*entities.Descriptor, error) {
	decl, err := entities.ParseDeclaration(declaration)
	if err != nil {
		return nil, err
	}
	return h.install(ctx, decl)
}

// InstallAll resolves the declarations against the lockfile, installs
// each extension, and activates them in dependency order.
func (h *Host) InstallAll(ctx context.Context, declarations []string) error {
	decls := make([]*entities.Declaration, 0, len(declarations))
	for _, raw := range declarations {
		decl, err := entities.ParseDeclaration(raw)
		if err != nil {
			return err
		}
		decls = append(decls, decl)
	}

	if _, err := h.lockfiles.ResolveDeclarations(ctx, decls, h.config.LockfilePath); err != nil {
		return err
	}

	for _, decl := range decls {
		if _, err := h.install(ctx, decl); err != nil {
			return fmt.Errorf("install %s: %w", decl.Alias, err)
		}
	}
	return h.runtime.ActivateAll()
}

// VerifyInstalled checks every cached package against the lockfile's
// pinned digests.
func (h *Host) VerifyInstalled(ctx context.Context) error {
	return h.lockfiles.VerifyLocked(ctx, h.config.LockfilePath)
}

// Runtime exposes the assembled extension runtime.
func (h *Host) Runtime() *hostlib.Runtime {
	return h.runtime
}

// Loader exposes the loader service, e.g. for cache management.
func (h *Host) Loader() *extension.Service {
	return h.loader
}

// Config returns the effective runtime configuration.
func (h *Host) Config() hostlib.RuntimeConfig {
	return h.config
}

func (h *Host) install(ctx context.Context, decl *entities.Declaration) (*entities.Descriptor, error) {
	pkg, err := h.loader.LoadPackage(ctx, decl)
	if err != nil {
		return nil, err
	}
	manifest := pkg.Manifest()

	required, err := capability.ParseSet(manifest.Permissions)
	if err != nil {
		return nil, fmt.Errorf("extension %s: %w", manifest.ID, err)
	}
	granted, err := h.gatekeeper.GrantCapabilities(manifest.ID, required, h.config.TrustAll)
	if err != nil {
		return nil, err
	}

	desc, err := h.runtime.Register(manifest)
	if err != nil {
		return nil, err
	}
	h.runtime.SetGrants(desc.ID(), granted)

	h.logger.Info("extension installed",
		"id", manifest.ID,
		"version", manifest.Version,
		"granted", granted.Strings(),
	)
	return desc, nil
}

func resolveConfig(c config) (hostlib.RuntimeConfig, error) {
	if c.runtimeConfig != nil {
		return *c.runtimeConfig, nil
	}
	return hostlib.LoadConfig()
}

func buildLoader(c config, cfg hostlib.RuntimeConfig, repo ports.PackageRepository, logger *slog.Logger) (*extension.Service, error) {
	fetcher := extension.NewHTTPFetcher(extension.WithFetchTimeout(cfg.FetchTimeout))
	adapter := oci.NewRegistryAdapter(oci.NewEnvAuthProvider())

	cached := resolvers.NewCachedResolver(repo)
	urls := resolvers.NewURLResolver(fetcher, repo, parser.NewJSONManifestParser(), logger)
	remote := resolvers.NewRegistryResolver(adapter, repo, logger)
	cached.SetNext(urls)
	urls.SetNext(remote)

	validator, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("manifest validator: %w", err)
	}

	verifier := c.verifier
	if verifier == nil && cfg.VerifySignatures {
		verifier = signing.NewCosignVerifier(nil, nil)
	}

	return extension.NewService(repo,
		extension.WithResolver(cached),
		extension.WithRegistry(adapter),
		extension.WithIntegrityVerifier(verifier),
		extension.WithIntegrityService(services.NewIntegrityService(cfg.VerifySignatures)),
		extension.WithValidator(validator),
		extension.WithServiceLogger(logger),
	)
}
