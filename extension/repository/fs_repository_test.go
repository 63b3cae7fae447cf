package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

func testManifest(id string) *entities.Manifest {
	return &entities.Manifest{
		ID:          id,
		DisplayName: "Test Extension",
		Version:     "1.0.0",
		Author:      "tabletop",
		APIVersion:  "1.0.0",
	}
}

func TestFSRepository(t *testing.T) {
	tmpDir := t.TempDir()

	repo, err := NewFSRepository(tmpDir)
	require.NoError(t, err)

	ref := values.NewOCIReference("reg.io", "org", "weather", "1.0.0")
	digest, _ := values.NewDigest("sha256", "abc123")
	pkg := entities.NewPackage(ref, digest, testManifest("weather"), nil)
	payload := []byte("package payload")

	t.Run("Store", func(t *testing.T) {
		path, err := repo.Store(context.Background(), pkg, bytes.NewReader(payload))
		require.NoError(t, err)

		_, err = os.Stat(path)
		require.NoError(t, err, "payload file not created")

		dir := filepath.Dir(path)
		_, err = os.Stat(filepath.Join(dir, manifestFile))
		assert.NoError(t, err, "manifest file not created")
		_, err = os.Stat(filepath.Join(dir, digestFile))
		assert.NoError(t, err, "digest file not created")
	})

	t.Run("Find", func(t *testing.T) {
		got, path, err := repo.Find(context.Background(), ref)
		require.NoError(t, err)

		assert.True(t, got.Reference().Equals(ref))
		assert.Equal(t, digest.Value(), got.Digest().Value())
		assert.Equal(t, "weather", got.Manifest().ID)

		_, err = os.Stat(path)
		assert.NoError(t, err, "returned path does not exist")
	})

	t.Run("Find_NotFound", func(t *testing.T) {
		missing := values.NewOCIReference("reg.io", "org", "missing", "1.0.0")
		_, _, err := repo.Find(context.Background(), missing)

		var notFound *entities.PackageNotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("List", func(t *testing.T) {
		list, err := repo.List(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Reference().Equals(ref))
	})

	t.Run("Prune_KeepsNewest", func(t *testing.T) {
		old := values.NewOCIReference("reg.io", "org", "weather", "0.9.0")
		oldPkg := entities.NewPackage(old, digest, testManifest("weather"), nil)
		_, err := repo.Store(context.Background(), oldPkg, bytes.NewReader(payload))
		require.NoError(t, err)

		require.NoError(t, repo.Prune(context.Background(), 1))

		_, _, err = repo.Find(context.Background(), old)
		require.Error(t, err, "old version should be pruned")
		_, _, err = repo.Find(context.Background(), ref)
		require.NoError(t, err, "newest version should survive")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(context.Background(), ref))

		_, _, err := repo.Find(context.Background(), ref)
		require.Error(t, err)
	})
}

func TestFSRepository_PathTraversal(t *testing.T) {
	tmpDir := t.TempDir()

	repo, err := NewFSRepository(tmpDir)
	require.NoError(t, err)

	tests := []struct {
		name        string
		ref         values.PackageReference
		expectError bool
	}{
		{
			name:        "ParentDirectoryEscape",
			ref:         values.NewOCIReference("..", "..", "passwd", "1.0.0"),
			expectError: true,
		},
		{
			name:        "ValidOCIReference",
			ref:         values.NewOCIReference("reg.io", "org", "valid-ext", "1.0.0"),
			expectError: false,
		},
		{
			name:        "ValidLocalReference",
			ref:         values.NewLocalReference("simple-ext"),
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := repo.packageDir(tt.ref)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, strings.ToLower(err.Error()), "traversal")
				assert.Empty(t, path)
			} else {
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(path, tmpDir),
					"valid path should be within repository root")
			}
		})
	}
}

func TestFSRepository_Store_PathTraversal(t *testing.T) {
	tmpDir := t.TempDir()

	repo, err := NewFSRepository(tmpDir)
	require.NoError(t, err)

	malicious := values.NewOCIReference("..", "..", "malicious", "1.0.0")
	digest, _ := values.NewDigest("sha256", "abc123")
	pkg := entities.NewPackage(malicious, digest, testManifest("malicious"), nil)

	_, err = repo.Store(context.Background(), pkg, bytes.NewReader([]byte("payload")))
	require.Error(t, err, "Store should reject path traversal")

	_, _, err = repo.Find(context.Background(), malicious)
	require.Error(t, err, "Find should reject path traversal")
}
