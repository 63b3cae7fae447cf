// Package filesystem provides file-based repositories for the loader's
// infrastructure layer.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
)

// FileLockfileRepository implements ports.LockfileRepository on the
// local filesystem.
type FileLockfileRepository struct{}

// NewFileLockfileRepository creates a new FileLockfileRepository.
func NewFileLockfileRepository() *FileLockfileRepository {
	return &FileLockfileRepository{}
}

// Load reads a lockfile from the given path. A missing file is not an
// error; it returns (nil, nil).
func (r *FileLockfileRepository) Load(ctx context.Context, path string) (*entities.Lockfile, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	// os.OpenRoot confines the read to the lockfile's directory.
	root, err := os.OpenRoot(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open directory %q: %w", dir, err)
	}
	defer func() { _ = root.Close() }()

	file, err := root.Open(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open lockfile %q: %w", base, err)
	}
	defer func() { _ = file.Close() }()

	var out Lockfile
	if err := yaml.NewDecoder(file).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding lockfile YAML: %w", err)
	}

	lock := out.ToEntity()
	if err := lock.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lockfile: %w", err)
	}
	return lock, nil
}

// Save writes a lockfile to the given path, creating the directory if
// needed.
func (r *FileLockfileRepository) Save(ctx context.Context, lockfile *entities.Lockfile, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("opening directory for write %q: %w", dir, err)
	}
	defer func() { _ = root.Close() }()

	base := filepath.Base(path)
	file, err := root.OpenFile(base, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating lockfile %q: %w", base, err)
	}
	defer func() { _ = file.Close() }()

	encoder := yaml.NewEncoder(file)
	defer func() { _ = encoder.Close() }()
	if err := encoder.Encode(FromEntity(lockfile)); err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}
	return nil
}

// Exists checks whether a lockfile exists at the given path.
func (r *FileLockfileRepository) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
