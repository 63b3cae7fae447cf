package filesystem_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/filesystem"
)

func TestFileLockfileRepository(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, "tabletop-lock.yaml")
	repo := filesystem.NewFileLockfileRepository()
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		lock := entities.NewLockfile()
		lock.Generated = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		err := lock.Add("weather", entities.ExtensionLock{
			Requested: "^1.0",
			Resolved:  "1.0.0",
			Digest:    "sha256:abc123",
			Source:    "ghcr.io/tabletop/extensions/weather:1.0.0",
		})
		require.NoError(t, err)

		err = repo.Save(ctx, lock, lockPath)
		require.NoError(t, err)

		exists, err := repo.Exists(ctx, lockPath)
		require.NoError(t, err)
		assert.True(t, exists)

		loaded, err := repo.Load(ctx, lockPath)
		require.NoError(t, err)
		require.NotNil(t, loaded)

		assert.Equal(t, lock.Version, loaded.Version)
		assert.Equal(t, lock.Generated.Unix(), loaded.Generated.Unix())

		entry := loaded.Get("weather")
		require.NotNil(t, entry)
		assert.Equal(t, "1.0.0", entry.Resolved)
		assert.Equal(t, "sha256:abc123", entry.Digest)
	})

	t.Run("Load non-existent", func(t *testing.T) {
		loaded, err := repo.Load(ctx, filepath.Join(tmpDir, "missing.yaml"))
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Save ensures directory", func(t *testing.T) {
		subLockPath := filepath.Join(tmpDir, "subdir", "tabletop-lock.yaml")

		lock := entities.NewLockfile()
		require.NoError(t, lock.Add("dummy", entities.ExtensionLock{Digest: "sha256:dd"}))

		err := repo.Save(ctx, lock, subLockPath)
		require.NoError(t, err)

		exists, err := repo.Exists(ctx, subLockPath)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
