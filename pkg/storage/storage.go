// Package storage moves media between the locations named by source and
// sink nodes and the local files FFmpeg reads and writes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when the object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrReadOnly is returned by backends that cannot write
	ErrReadOnly = errors.New("storage is read-only")
)

// AllowedSchemes is the whitelist of allowed URI schemes
var AllowedSchemes = []string{"file", "http", "https", "s3", "dapr"}

// Storage is the interface for all storage backends
type Storage interface {
	// Get downloads a file from the given URI and returns a reader
	Get(ctx context.Context, uri string) (io.ReadCloser, error)

	// Put uploads data to the given URI
	Put(ctx context.Context, uri string, data io.Reader) error

	// Delete removes a file at the given URI
	Delete(ctx context.Context, uri string) error

	// Exists checks if a file exists at the given URI
	Exists(ctx context.Context, uri string) (bool, error)
}

// ParseURI splits a location into scheme and path. Plain filesystem paths
// have the "file" scheme.
func ParseURI(uri string) (scheme string, path string, err error) {
	if uri == "" {
		return "", "", fmt.Errorf("URI cannot be empty")
	}

	if !strings.Contains(uri, "://") {
		return "file", uri, nil
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid URI: %w", err)
	}

	if parsed.Scheme == "" {
		return "", "", fmt.Errorf("URI must have a scheme (e.g., https://, s3://)")
	}

	if parsed.Scheme == "file" {
		return parsed.Scheme, parsed.Path, nil
	}

	path = parsed.Host
	if parsed.Path != "" {
		path = path + parsed.Path
	}

	return parsed.Scheme, path, nil
}

// IsAllowedScheme checks if a URI scheme is in the whitelist
func IsAllowedScheme(scheme string) bool {
	for _, allowed := range AllowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// IsLocal reports whether FFmpeg can use the location as a plain file
func IsLocal(uri string) bool {
	scheme, _, err := ParseURI(uri)
	return err == nil && scheme == "file"
}

// Mux routes each call to the backend registered for the URI scheme
type Mux struct {
	mu       sync.RWMutex
	backends map[string]Storage
}

// NewMux creates a Mux with the local backend registered for "file"
func NewMux() *Mux {
	m := &Mux{backends: make(map[string]Storage)}
	m.Handle("file", NewLocalStorage())
	return m
}

// Handle registers backend for scheme, replacing any previous one
func (m *Mux) Handle(scheme string, backend Storage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[scheme] = backend
}

// For returns the backend serving uri
func (m *Mux) For(uri string) (Storage, error) {
	scheme, _, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	backend, ok := m.backends[scheme]
	if !ok {
		return nil, fmt.Errorf("no storage backend for scheme %q", scheme)
	}
	return backend, nil
}

// Get implements Storage
func (m *Mux) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	backend, err := m.For(uri)
	if err != nil {
		return nil, err
	}
	return backend.Get(ctx, uri)
}

// Put implements Storage
func (m *Mux) Put(ctx context.Context, uri string, data io.Reader) error {
	backend, err := m.For(uri)
	if err != nil {
		return err
	}
	return backend.Put(ctx, uri, data)
}

// Delete implements Storage
func (m *Mux) Delete(ctx context.Context, uri string) error {
	backend, err := m.For(uri)
	if err != nil {
		return err
	}
	return backend.Delete(ctx, uri)
}

// Exists implements Storage
func (m *Mux) Exists(ctx context.Context, uri string) (bool, error) {
	backend, err := m.For(uri)
	if err != nil {
		return false, err
	}
	return backend.Exists(ctx, uri)
}
