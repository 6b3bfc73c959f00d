package stores

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// SchemeFile is the scheme of local filesystem URIs. Plain paths use it too.
const SchemeFile = "file"

// FileInfo describes one stored file.
type FileInfo struct {
	Path         string `json:"path" yaml:"path"`
	Name         string `json:"name" yaml:"name"`
	Size         int64  `json:"size" yaml:"size"`
	Hash         string `json:"hash,omitempty" yaml:"hash,omitempty"`
	ContentType  string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	LastModified string `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
}

// ToMap returns the info as a generic object for entity status.
func (f *FileInfo) ToMap() map[string]any {
	return map[string]any{
		"path":          f.Path,
		"name":          f.Name,
		"size":          f.Size,
		"hash":          f.Hash,
		"content_type":  f.ContentType,
		"last_modified": f.LastModified,
	}
}

// Store moves payloads between the local filesystem and a storage backend.
type Store interface {
	// Download copies src from the store to the local path dst and returns
	// the local path written.
	Download(ctx context.Context, src, dst string) (string, error)

	// Upload copies the local path src to dst in the store and returns the
	// URI of the stored object.
	Upload(ctx context.Context, src, dst string) (string, error)

	// GetFileInfo describes the stored files under path.
	GetFileInfo(ctx context.Context, path string) ([]FileInfo, error)
}

// Registry selects a Store by URI scheme.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// DefaultRegistry returns a registry serving file URIs from the local
// filesystem.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SchemeFile, NewOSStore())
	return r
}

// Register binds scheme to s, replacing any previous binding.
func (r *Registry) Register(scheme string, s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[strings.ToLower(scheme)] = s
}

// Lookup returns the store for the scheme of uri.
func (r *Registry) Lookup(uri string) (Store, bool) {
	scheme, err := Scheme(uri)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[scheme]
	return s, ok
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.stores))
	for s := range r.stores {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Scheme returns the lower-cased scheme of uri, or SchemeFile for a plain
// path.
func Scheme(uri string) (string, error) {
	if !strings.Contains(uri, "://") {
		return SchemeFile, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid store uri %q: %w", uri, err)
	}
	return strings.ToLower(u.Scheme), nil
}
