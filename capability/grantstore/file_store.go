// Package grantstore provides file-based persistence for capability
// grants.
package grantstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     filepath.Join(os.Getenv("HOME"), ".tabletop", "grants.yaml"),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStoreOption configures a FileStore instance.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the path to the grants file.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// WithFilePermissions sets the file permissions for the grants file.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the directory permissions for the grants
// directory.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore persists capability grants as a YAML map of extension id
// to granted capability names.
type FileStore struct {
	config fileStoreConfig
}

// NewFileStore creates a new FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Load retrieves all granted capabilities keyed by extension id.
// A missing file is an empty grant map, not an error.
func (s *FileStore) Load() (map[string]capability.Set, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return map[string]capability.Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read grant store: %w", err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse grant store: %w", err)
	}

	grants := make(map[string]capability.Set, len(raw))
	for id, names := range raw {
		set, err := capability.ParseSet(names)
		if err != nil {
			return nil, fmt.Errorf("grant store entry %q: %w", id, err)
		}
		grants[id] = set
	}
	return grants, nil
}

// Save persists the granted capabilities.
func (s *FileStore) Save(grants map[string]capability.Set) error {
	raw := make(map[string][]string, len(grants))
	for id, set := range grants {
		if set.IsEmpty() {
			continue
		}
		names := set.Strings()
		sort.Strings(names)
		raw[id] = names
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal grants: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("create grant store directory: %w", err)
	}

	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("write grant store: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the backing store.
func (s *FileStore) ConfigPath() string {
	return s.config.path
}
