// Package repository implements package storage adapters for the
// loader.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

const (
	payloadFile  = "package.bin"
	manifestFile = "manifest.json"
	digestFile   = "digest.txt"
)

// FSRepository implements ports.PackageRepository on the local
// filesystem, one directory per reference under the cache root.
type FSRepository struct {
	root string // e.g. ~/.tabletop/extensions
}

// NewFSRepository creates a filesystem-based repository rooted at root,
// defaulting to ~/.tabletop/extensions.
func NewFSRepository(root string) (*FSRepository, error) {
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".tabletop", "extensions")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FSRepository{root: root}, nil
}

// Find retrieves a cached package and the path to its payload.
func (r *FSRepository) Find(ctx context.Context, ref values.PackageReference) (*entities.Package, string, error) {
	dir, err := r.packageDir(ref)
	if err != nil {
		return nil, "", err
	}

	path := filepath.Join(dir, payloadFile)
	if _, err := os.Stat(path); err != nil {
		return nil, "", &entities.PackageNotFoundError{Reference: ref}
	}

	manifest, err := r.loadManifest(dir)
	if err != nil {
		return nil, "", err
	}
	digest, err := r.loadDigest(dir)
	if err != nil {
		return nil, "", err
	}

	return entities.NewPackage(ref, digest, manifest, nil), path, nil
}

// Store persists a package payload plus its manifest and digest.
// Returns the payload path.
func (r *FSRepository) Store(ctx context.Context, pkg *entities.Package, payload io.Reader) (string, error) {
	dir, err := r.packageDir(pkg.Reference())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	path := filepath.Join(dir, payloadFile)
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()
	if _, err := io.Copy(file, payload); err != nil {
		return "", fmt.Errorf("write payload: %w", err)
	}

	if err := r.saveManifest(dir, pkg.Manifest()); err != nil {
		return "", err
	}
	if err := r.saveDigest(dir, pkg.Digest()); err != nil {
		return "", err
	}
	return path, nil
}

// List returns all cached packages.
func (r *FSRepository) List(ctx context.Context) ([]*entities.Package, error) {
	var packages []*entities.Package
	err := filepath.Walk(r.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() != payloadFile {
			return nil
		}
		ref, err := r.refFromDir(filepath.Dir(path))
		if err != nil {
			return nil //nolint:nilerr // skip entries that don't parse back
		}
		if pkg, _, err := r.Find(ctx, ref); err == nil {
			packages = append(packages, pkg)
		}
		return nil
	})
	return packages, err
}

// Prune removes old versions, keeping keepVersions per package name.
func (r *FSRepository) Prune(ctx context.Context, keepVersions int) error {
	packages, err := r.List(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string][]*entities.Package)
	for _, pkg := range packages {
		name := pkg.Reference().Name()
		byName[name] = append(byName[name], pkg)
	}

	for _, versions := range byName {
		if len(versions) <= keepVersions {
			continue
		}
		// List walks in lexical order, so newest versions sort last.
		for _, pkg := range versions[:len(versions)-keepVersions] {
			if err := r.Delete(ctx, pkg.Reference()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes a cached package.
func (r *FSRepository) Delete(ctx context.Context, ref values.PackageReference) error {
	dir, err := r.packageDir(ref)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// packageDir maps a reference onto a directory under the cache root,
// rejecting references that would escape it.
func (r *FSRepository) packageDir(ref values.PackageReference) (string, error) {
	refStr := ref.String()
	if filepath.IsAbs(refStr) {
		return "", fmt.Errorf("absolute paths not allowed in package reference %q", refStr)
	}

	cleanRoot := filepath.Clean(r.root)
	cleanPath := filepath.Clean(filepath.Join(r.root, refStr))
	if !strings.HasPrefix(cleanPath, cleanRoot+string(os.PathSeparator)) && cleanPath != cleanRoot {
		return "", fmt.Errorf("path traversal detected for package reference %q", refStr)
	}
	return cleanPath, nil
}

func (r *FSRepository) loadManifest(dir string) (*entities.Manifest, error) {
	file, err := os.Open(filepath.Clean(filepath.Join(dir, manifestFile)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var manifest entities.Manifest
	if err := json.NewDecoder(file).Decode(&manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (r *FSRepository) saveManifest(dir string, manifest *entities.Manifest) error {
	file, err := os.Create(filepath.Clean(filepath.Join(dir, manifestFile)))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	return json.NewEncoder(file).Encode(manifest)
}

func (r *FSRepository) loadDigest(dir string) (values.Digest, error) {
	data, err := os.ReadFile(filepath.Clean(filepath.Join(dir, digestFile)))
	if err != nil {
		return values.Digest{}, err
	}
	return values.ParseDigest(strings.TrimSpace(string(data)))
}

func (r *FSRepository) saveDigest(dir string, digest values.Digest) error {
	return os.WriteFile(filepath.Join(dir, digestFile), []byte(digest.String()), 0o600)
}

func (r *FSRepository) refFromDir(dir string) (values.PackageReference, error) {
	relPath, err := filepath.Rel(r.root, dir)
	if err != nil {
		return values.PackageReference{}, err
	}
	return values.ParsePackageReference(relPath)
}
