// Package abc is the boundary to an Allen Brain Cell atlas cache
// directory. The rest of the server depends only on the Resolver
// interface so the concrete cache layout stays swappable.
package abc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPathNotFound is returned when a dataset reference cannot be resolved
// to an existing file.
var ErrPathNotFound = errors.New("path not found")

// Manifest describes the cache's current dataset manifest.
type Manifest struct {
	Version     string             `json:"version"`
	ResourceURI string             `json:"resource_uri,omitempty"`
	Directories map[string]Listing `json:"directory_listing,omitempty"`
}

// Listing is one directory entry of the manifest.
type Listing struct {
	Version     string   `json:"version,omitempty"`
	Directories []string `json:"directories,omitempty"`
}

// Resolver resolves dataset references against a cache root and exposes
// the cache manifest.
type Resolver interface {
	// ResolvePath returns the absolute path for a reference. Absolute
	// paths that exist pass through unchanged; relative paths are joined
	// to the cache root. A reference that resolves to no existing file
	// fails with ErrPathNotFound.
	ResolvePath(ref string) (string, error)

	// Manifest returns the cache's current manifest.
	Manifest() (*Manifest, error)
}

// DirCache resolves references against a local cache directory holding a
// manifest.json at its root.
type DirCache struct {
	root string
}

// NewDirCache creates a resolver over a cache directory.
func NewDirCache(root string) *DirCache {
	return &DirCache{root: root}
}

// Root returns the cache root directory.
func (c *DirCache) Root() string {
	return c.root
}

// ResolvePath implements Resolver.
func (c *DirCache) ResolvePath(ref string) (string, error) {
	if filepath.IsAbs(ref) {
		if _, err := os.Stat(ref); err == nil {
			return ref, nil
		}
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, ref)
	}

	resolved := filepath.Join(c.root, ref)
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("%w: could not resolve %q inside cache dir %q", ErrPathNotFound, ref, c.root)
	}
	return resolved, nil
}

// Manifest implements Resolver.
func (c *DirCache) Manifest() (*Manifest, error) {
	path := filepath.Join(c.root, "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache manifest at %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse cache manifest at %s: %w", path, err)
	}
	return &m, nil
}

// StaticResolver is a map-backed Resolver for tests.
type StaticResolver struct {
	Paths        map[string]string
	ManifestData *Manifest
}

// ResolvePath implements Resolver.
func (s *StaticResolver) ResolvePath(ref string) (string, error) {
	if p, ok := s.Paths[ref]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrPathNotFound, ref)
}

// Manifest implements Resolver.
func (s *StaticResolver) Manifest() (*Manifest, error) {
	if s.ManifestData == nil {
		return nil, errors.New("no manifest configured")
	}
	return s.ManifestData, nil
}
