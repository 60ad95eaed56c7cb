package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStorage implements read-only Storage for HTTP/HTTPS sources
type HTTPStorage struct {
	client    *http.Client
	userAgent string
}

// HTTPOption configures HTTPStorage
type HTTPOption func(*HTTPStorage)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(hs *HTTPStorage) { hs.client = c }
}

// WithUserAgent sets the User-Agent header of every request
func WithUserAgent(ua string) HTTPOption {
	return func(hs *HTTPStorage) { hs.userAgent = ua }
}

// NewHTTPStorage creates a new HTTP storage backend
func NewHTTPStorage(opts ...HTTPOption) *HTTPStorage {
	hs := &HTTPStorage{
		client:    &http.Client{Timeout: 30 * time.Minute},
		userAgent: "ffmpeg-chain",
	}
	for _, opt := range opts {
		opt(hs)
	}
	return hs
}

func (hs *HTTPStorage) do(ctx context.Context, method, uri string) (*http.Response, error) {
	scheme, _, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("HTTP storage only supports http:// and https:// URIs, got %s://", scheme)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", hs.userAgent)

	return hs.client.Do(req)
}

// Get downloads a file over HTTP/HTTPS
func (hs *HTTPStorage) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	resp, err := hs.do(ctx, http.MethodGet, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s (status 404)", ErrNotFound, uri)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request failed with status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// Put is not supported
func (hs *HTTPStorage) Put(ctx context.Context, uri string, data io.Reader) error {
	return fmt.Errorf("put %s: %w", uri, ErrReadOnly)
}

// Delete is not supported
func (hs *HTTPStorage) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("delete %s: %w", uri, ErrReadOnly)
}

// Exists sends a HEAD request
func (hs *HTTPStorage) Exists(ctx context.Context, uri string) (bool, error) {
	resp, err := hs.do(ctx, http.MethodHead, uri)
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}
