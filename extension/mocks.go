package extension

import (
	"context"
	"io"
	"log/slog"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/dto"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/services"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// MockResolver implements services.ResolutionStrategy for testing.
type MockResolver struct {
	services.BaseResolver
	FoundPackage *entities.Package
	Err          error
	Called       bool
}

func (m *MockResolver) Resolve(ctx context.Context, ref values.PackageReference) (*entities.Package, error) {
	m.Called = true
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FoundPackage != nil {
		return m.FoundPackage, nil
	}
	return m.ResolveNext(ctx, ref)
}

// MockRepository implements ports.PackageRepository.
type MockRepository struct {
	FindPackage *entities.Package
	FindPath    string
	FindErr     error

	StorePath string
	StoreErr  error
	Stored    []*entities.Package

	ListPackages []*entities.Package
	ListErr      error

	PrunedKeep int
	Deleted    []values.PackageReference
}

func (m *MockRepository) Find(ctx context.Context, ref values.PackageReference) (*entities.Package, string, error) {
	if m.FindErr != nil {
		return nil, "", m.FindErr
	}
	return m.FindPackage, m.FindPath, nil
}

func (m *MockRepository) Store(ctx context.Context, pkg *entities.Package, payload io.Reader) (string, error) {
	if m.StoreErr != nil {
		return "", m.StoreErr
	}
	m.Stored = append(m.Stored, pkg)
	return m.StorePath, nil
}

func (m *MockRepository) List(ctx context.Context) ([]*entities.Package, error) {
	return m.ListPackages, m.ListErr
}

func (m *MockRepository) Prune(ctx context.Context, keepVersions int) error {
	m.PrunedKeep = keepVersions
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, ref values.PackageReference) error {
	m.Deleted = append(m.Deleted, ref)
	return nil
}

// MockRegistry implements ports.PackageRegistry.
type MockRegistry struct {
	PullArtifact *dto.PackageArtifactDTO
	PullErr      error
	PushErr      error
	Pushed       []*dto.PackageArtifactDTO

	ResolveDigest values.Digest
	ResolveErr    error
}

func (m *MockRegistry) Pull(ctx context.Context, ref values.PackageReference) (*dto.PackageArtifactDTO, error) {
	if m.PullErr != nil {
		return nil, m.PullErr
	}
	return m.PullArtifact, nil
}

func (m *MockRegistry) Push(ctx context.Context, artifact *dto.PackageArtifactDTO) error {
	if m.PushErr != nil {
		return m.PushErr
	}
	m.Pushed = append(m.Pushed, artifact)
	return nil
}

func (m *MockRegistry) Resolve(ctx context.Context, ref values.PackageReference) (values.Digest, error) {
	if m.ResolveErr != nil {
		return values.Digest{}, m.ResolveErr
	}
	return m.ResolveDigest, nil
}

// MockFetcher implements ports.PackageFetcher.
type MockFetcher struct {
	Payload []byte
	Err     error
	Fetched []string
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.Fetched = append(m.Fetched, url)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Payload, nil
}

// MockVerifier implements ports.IntegrityVerifier.
type MockVerifier struct {
	Result    *ports.SignatureResult
	VerifyErr error
	SignErr   error
	Verified  []values.PackageReference
}

func (m *MockVerifier) VerifySignature(ctx context.Context, ref values.PackageReference) (*ports.SignatureResult, error) {
	m.Verified = append(m.Verified, ref)
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &ports.SignatureResult{Verified: true}, nil
}

func (m *MockVerifier) Sign(ctx context.Context, ref values.PackageReference) error {
	return m.SignErr
}

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockLockfileRepository implements ports.LockfileRepository in memory.
type MockLockfileRepository struct {
	Lockfile *entities.Lockfile
	LoadErr  error
	SaveErr  error
	Saved    int
}

func (m *MockLockfileRepository) Load(ctx context.Context, path string) (*entities.Lockfile, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Lockfile, nil
}

func (m *MockLockfileRepository) Save(ctx context.Context, lockfile *entities.Lockfile, path string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Lockfile = lockfile
	m.Saved++
	return nil
}

func (m *MockLockfileRepository) Exists(ctx context.Context, path string) (bool, error) {
	return m.Lockfile != nil, nil
}
