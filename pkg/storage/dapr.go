package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	dapr "github.com/dapr/go-sdk/client"
)

// Binder invokes a Dapr output binding; *dapr.Client satisfies it
type Binder interface {
	InvokeBinding(ctx context.Context, in *dapr.InvokeBindingRequest) (*dapr.BindingEvent, error)
}

// DaprStorage implements Storage over Dapr object-store bindings. URIs have
// the form dapr://<component>/<key>; payloads travel base64 encoded.
type DaprStorage struct {
	client Binder
}

// NewDaprStorage creates a Dapr binding backend
func NewDaprStorage(client Binder) *DaprStorage {
	return &DaprStorage{client: client}
}

func parseDaprURI(uri string) (component, key string, err error) {
	scheme, p, err := ParseURI(uri)
	if err != nil {
		return "", "", err
	}
	if scheme != "dapr" {
		return "", "", fmt.Errorf("dapr storage only supports dapr:// URIs, got %s://", scheme)
	}
	parts := strings.SplitN(p, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid dapr URI %q: want dapr://<component>/<key>", uri)
	}
	return parts[0], parts[1], nil
}

func (ds *DaprStorage) invoke(ctx context.Context, uri, op string, data []byte) (*dapr.BindingEvent, error) {
	component, key, err := parseDaprURI(uri)
	if err != nil {
		return nil, err
	}
	return ds.client.InvokeBinding(ctx, &dapr.InvokeBindingRequest{
		Name:      component,
		Operation: op,
		Data:      data,
		Metadata:  map[string]string{"key": key},
	})
}

// Get fetches an object through the binding's "get" operation
func (ds *DaprStorage) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	res, err := ds.invoke(ctx, uri, "get", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", uri, err)
	}
	if res == nil || len(res.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return io.NopCloser(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(res.Data))), nil
}

// Put stores an object through the binding's "create" operation
func (ds *DaprStorage) Put(ctx context.Context, uri string, data io.Reader) error {
	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err := io.Copy(enc, data); err != nil {
		return fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", uri, err)
	}

	if _, err := ds.invoke(ctx, uri, "create", buf.Bytes()); err != nil {
		return fmt.Errorf("failed to put %s: %w", uri, err)
	}
	return nil
}

// Delete removes an object through the binding's "delete" operation
func (ds *DaprStorage) Delete(ctx context.Context, uri string) error {
	if _, err := ds.invoke(ctx, uri, "delete", nil); err != nil {
		return fmt.Errorf("failed to delete %s: %w", uri, err)
	}
	return nil
}

// Exists probes the object with a "get". Bindings report missing keys as
// errors, so any binding failure reads as absent.
func (ds *DaprStorage) Exists(ctx context.Context, uri string) (bool, error) {
	if _, _, err := parseDaprURI(uri); err != nil {
		return false, err
	}
	res, err := ds.invoke(ctx, uri, "get", nil)
	if err != nil {
		return false, nil
	}
	return res != nil && len(res.Data) > 0, nil
}
