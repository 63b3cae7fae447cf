package extension

import (
	"context"
	"fmt"
	"time"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// LockfileService pins the host's extension set for reproducible
// startups. Declarations are resolved once, and the lockfile records
// the exact version and content digest each alias resolved to.
type LockfileService struct {
	repo       ports.LockfileRepository
	versions   ports.VersionResolver
	loader     ports.Loader
	repository ports.PackageRepository
	now        func() time.Time
}

// NewLockfileService creates a lockfile service.
func NewLockfileService(
	repo ports.LockfileRepository,
	versions ports.VersionResolver,
	loader ports.Loader,
	repository ports.PackageRepository,
) *LockfileService {
	return &LockfileService{
		repo:       repo,
		versions:   versions,
		loader:     loader,
		repository: repository,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ResolveDeclarations resolves each declaration against the lockfile.
// Entries whose requested constraint and source are unchanged are kept
// as-is; anything new or changed is loaded, pinned and written back.
func (s *LockfileService) ResolveDeclarations(
	ctx context.Context,
	decls []*entities.Declaration,
	lockfilePath string,
) (*entities.Lockfile, error) {
	lock, err := s.repo.Load(ctx, lockfilePath)
	if err != nil {
		return nil, fmt.Errorf("load lockfile: %w", err)
	}
	if lock == nil {
		lock = entities.NewLockfile()
	}

	updated := false
	for _, decl := range decls {
		constraint := decl.Constraint
		if constraint == "" {
			constraint = "latest"
		}

		if locked := lock.Get(decl.Alias); locked != nil {
			if locked.Requested == constraint && locked.Source == decl.Source {
				continue
			}
		}

		pinned := *decl
		if resolved, err := s.resolveFromCache(ctx, decl.Alias, constraint); err == nil {
			pinned.Constraint = resolved
		}

		pkg, err := s.loader.LoadPackage(ctx, &pinned)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", decl.Alias, err)
		}

		entry := entities.ExtensionLock{
			Requested: constraint,
			Resolved:  pkg.Manifest().Version,
			Source:    decl.Source,
			Digest:    pkg.Digest().String(),
			Fetched:   s.now(),
		}
		if err := lock.Add(decl.Alias, entry); err != nil {
			return nil, err
		}
		updated = true
	}

	if updated {
		lock.Generated = s.now()
		if err := s.repo.Save(ctx, lock, lockfilePath); err != nil {
			return nil, fmt.Errorf("save lockfile: %w", err)
		}
	}
	return lock, nil
}

// VerifyLocked checks every cached package named in the lockfile
// against its pinned digest.
func (s *LockfileService) VerifyLocked(ctx context.Context, lockfilePath string) error {
	lock, err := s.repo.Load(ctx, lockfilePath)
	if err != nil {
		return fmt.Errorf("load lockfile: %w", err)
	}
	if lock == nil || lock.Count() == 0 {
		return nil
	}

	for alias, entry := range lock.Extensions {
		ref, err := values.ParsePackageReference(entry.Source)
		if err != nil {
			return fmt.Errorf("lockfile entry %q: invalid source: %w", alias, err)
		}
		if ref.Version() == "" {
			ref = ref.WithVersion(entry.Resolved)
		}

		pkg, _, err := s.repository.Find(ctx, ref)
		if err != nil {
			return fmt.Errorf("lockfile entry %q: %w", alias, err)
		}

		expected, err := values.ParseDigest(entry.Digest)
		if err != nil {
			return fmt.Errorf("lockfile entry %q: invalid digest: %w", alias, err)
		}
		if err := pkg.VerifyIntegrity(expected); err != nil {
			return fmt.Errorf("lockfile entry %q: %w", alias, err)
		}
	}
	return nil
}

// resolveFromCache resolves a constraint against the versions already
// in the local cache. Errors mean the constraint could not be resolved
// locally, in which case the loader's chain decides.
func (s *LockfileService) resolveFromCache(ctx context.Context, alias, constraint string) (string, error) {
	cached, err := s.repository.List(ctx)
	if err != nil {
		return "", err
	}

	var available []string
	for _, pkg := range cached {
		if pkg.Reference().Name() == alias {
			available = append(available, pkg.Manifest().Version)
		}
	}
	if len(available) == 0 {
		return "", fmt.Errorf("no cached versions of %s", alias)
	}
	return s.versions.Resolve(constraint, available)
}
