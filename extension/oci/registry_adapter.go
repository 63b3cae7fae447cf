// Package oci implements OCI registry adapters for extension package
// distribution.
package oci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/dto"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// PackageMediaType marks the payload layer of an extension artifact.
const PackageMediaType = "application/vnd.tabletop.extension.package.v1"

// RegistryAdapter implements ports.PackageRegistry using oras-go.
type RegistryAdapter struct {
	auth ports.AuthProvider
}

// NewRegistryAdapter creates an OCI registry adapter.
func NewRegistryAdapter(auth ports.AuthProvider) *RegistryAdapter {
	return &RegistryAdapter{auth: auth}
}

// Pull downloads an extension package artifact from the registry. The
// artifact's config layer carries the extension manifest; the payload
// layer carries the package archive.
func (a *RegistryAdapter) Pull(ctx context.Context, ref values.PackageReference) (*dto.PackageArtifactDTO, error) {
	repo, err := a.repository(ctx, ref)
	if err != nil {
		return nil, err
	}

	store := memory.New()
	manifestDesc, err := oras.Copy(ctx, repo, ref.Version(), store, ref.Version(), oras.CopyOptions{})
	if err != nil {
		return nil, fmt.Errorf("pull artifact: %w", err)
	}

	ociManifest, err := a.fetchManifest(ctx, store, manifestDesc)
	if err != nil {
		return nil, err
	}

	manifest, err := a.fetchExtensionManifest(ctx, store, ociManifest.Config)
	if err != nil {
		return nil, err
	}

	payloadDesc, err := findPayloadLayer(ociManifest)
	if err != nil {
		return nil, err
	}
	payload, err := fetchAll(ctx, store, payloadDesc)
	if err != nil {
		return nil, fmt.Errorf("fetch payload: %w", err)
	}

	digest, err := values.ParseDigest(string(payloadDesc.Digest))
	if err != nil {
		return nil, fmt.Errorf("parse payload digest: %w", err)
	}

	pkg := entities.NewPackage(ref, digest, manifest, nil)
	return dto.NewPackageArtifactDTO(pkg, io.NopCloser(bytes.NewReader(payload))), nil
}

// Push uploads an extension package artifact to the registry.
func (a *RegistryAdapter) Push(ctx context.Context, artifact *dto.PackageArtifactDTO) error {
	ref := artifact.Package.Reference()
	repo, err := a.repository(ctx, ref)
	if err != nil {
		return err
	}

	payload, err := io.ReadAll(artifact.Payload)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	configBytes, err := json.Marshal(artifact.Package.Manifest())
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	store := memory.New()
	configDesc, err := pushBlob(ctx, store, ocispec.MediaTypeImageConfig, configBytes)
	if err != nil {
		return err
	}
	payloadDesc, err := pushBlob(ctx, store, PackageMediaType, payload)
	if err != nil {
		return err
	}

	ociManifest := ocispec.Manifest{
		MediaType: ocispec.MediaTypeImageManifest,
		Config:    configDesc,
		Layers:    []ocispec.Descriptor{payloadDesc},
	}
	ociManifest.SchemaVersion = 2
	manifestBytes, err := json.Marshal(ociManifest)
	if err != nil {
		return fmt.Errorf("marshal oci manifest: %w", err)
	}
	manifestDesc, err := pushBlob(ctx, store, ocispec.MediaTypeImageManifest, manifestBytes)
	if err != nil {
		return err
	}
	if err := store.Tag(ctx, manifestDesc, ref.Version()); err != nil {
		return fmt.Errorf("tag manifest: %w", err)
	}

	if _, err := oras.Copy(ctx, store, ref.Version(), repo, ref.Version(), oras.CopyOptions{}); err != nil {
		return fmt.Errorf("push artifact: %w", err)
	}
	return nil
}

// Resolve resolves a reference's tag to its content digest.
func (a *RegistryAdapter) Resolve(ctx context.Context, ref values.PackageReference) (values.Digest, error) {
	repo, err := a.repository(ctx, ref)
	if err != nil {
		return values.Digest{}, err
	}
	desc, err := repo.Resolve(ctx, ref.Version())
	if err != nil {
		return values.Digest{}, fmt.Errorf("resolve %s: %w", ref.String(), err)
	}
	return values.ParseDigest(string(desc.Digest))
}

func (a *RegistryAdapter) repository(ctx context.Context, ref values.PackageReference) (*remote.Repository, error) {
	repo, err := remote.NewRepository(ref.String())
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	if a.auth != nil {
		username, password, err := a.auth.GetCredentials(ctx, ref.Registry())
		if err == nil && username != "" {
			repo.Client = &auth.Client{
				Credential: func(ctx context.Context, registry string) (auth.Credential, error) {
					return auth.Credential{Username: username, Password: password}, nil
				},
			}
		}
	}
	return repo, nil
}

func (a *RegistryAdapter) fetchManifest(ctx context.Context, store *memory.Store, desc ocispec.Descriptor) (*ocispec.Manifest, error) {
	data, err := fetchAll(ctx, store, desc)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	return &manifest, nil
}

func (a *RegistryAdapter) fetchExtensionManifest(ctx context.Context, store *memory.Store, desc ocispec.Descriptor) (*entities.Manifest, error) {
	data, err := fetchAll(ctx, store, desc)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}
	var manifest entities.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}
	return &manifest, nil
}

func findPayloadLayer(manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	for _, layer := range manifest.Layers {
		if layer.MediaType == PackageMediaType {
			return layer, nil
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("no package payload layer found")
}

func fetchAll(ctx context.Context, store *memory.Store, desc ocispec.Descriptor) ([]byte, error) {
	rc, err := store.Fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func pushBlob(ctx context.Context, store *memory.Store, mediaType string, data []byte) (ocispec.Descriptor, error) {
	desc := content.NewDescriptorFromBytes(mediaType, data)
	if err := store.Push(ctx, desc, bytes.NewReader(data)); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("push blob: %w", err)
	}
	return desc, nil
}
