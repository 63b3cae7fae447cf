// Package ports declares the interfaces between the extension runtime
// and its collaborators: the loader pipeline, the host's state and
// resource providers, and the observability sink.
package ports

import (
	"context"
	"io"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/dto"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// Loader fetches and validates raw extension packages off the hot
// path. Only descriptor-valid packages reach the registry; a package is
// either fully loaded or not present.
type Loader interface {
	LoadPackage(ctx context.Context, decl *entities.Declaration) (*entities.Package, error)
}

// HostStateProvider supplies the snapshot the sandbox exposes through
// its read-only view.
type HostStateProvider interface {
	Snapshot() map[string]any
}

// OriginalResourceProvider is the fallback beneath the override table:
// the host's own resources, untouched by any extension.
type OriginalResourceProvider interface {
	OriginalResource(key values.ResourceKey) (any, bool)
}

// PackageRepository manages local storage of fetched packages.
type PackageRepository interface {
	// Find retrieves a cached package by reference, plus its path.
	Find(ctx context.Context, ref values.PackageReference) (*entities.Package, string, error)

	// Store persists a package payload. Returns the stored path.
	Store(ctx context.Context, pkg *entities.Package, payload io.Reader) (string, error)

	// List returns all cached packages.
	List(ctx context.Context) ([]*entities.Package, error)

	// Prune removes old versions, keeping the specified number.
	Prune(ctx context.Context, keepVersions int) error

	// Delete removes a specific package from the cache.
	Delete(ctx context.Context, ref values.PackageReference) error
}

// PackageRegistry provides access to remote OCI registries.
type PackageRegistry interface {
	// Pull downloads a package artifact from the registry.
	Pull(ctx context.Context, ref values.PackageReference) (*dto.PackageArtifactDTO, error)

	// Push uploads a package artifact to the registry.
	Push(ctx context.Context, artifact *dto.PackageArtifactDTO) error

	// Resolve resolves a reference to its content digest.
	Resolve(ctx context.Context, ref values.PackageReference) (values.Digest, error)
}

// PackageFetcher downloads a package payload from a direct URL.
type PackageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// IntegrityVerifier verifies cryptographic signatures on packages.
type IntegrityVerifier interface {
	// VerifySignature checks the signature of a published package.
	VerifySignature(ctx context.Context, ref values.PackageReference) (*SignatureResult, error)

	// Sign signs a package artifact (for publishing).
	Sign(ctx context.Context, ref values.PackageReference) error
}

// SignatureResult contains signature verification details.
type SignatureResult struct {
	Signer          string
	TransparencyLog string
	Certificate     []byte
	Verified        bool
}

// VersionResolver converts version constraints to exact versions.
type VersionResolver interface {
	Resolve(constraint string, available []string) (string, error)
}

// LockfileRepository manages lockfile persistence.
type LockfileRepository interface {
	Load(ctx context.Context, path string) (*entities.Lockfile, error)
	Save(ctx context.Context, lockfile *entities.Lockfile, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// AuthProvider retrieves authentication credentials for registries.
type AuthProvider interface {
	// GetCredentials returns (username, password, error).
	GetCredentials(ctx context.Context, registry string) (string, string, error)
}
