package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStorage_Get(t *testing.T) {
	testContent := "test file content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chain-test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(testContent))
	}))
	defer server.Close()

	storage := NewHTTPStorage(WithHTTPClient(server.Client()), WithUserAgent("chain-test"))

	reader, err := storage.Get(context.Background(), server.URL+"/test.mp4")
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, testContent, string(content))
}

func TestHTTPStorage_Get_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reader, err := NewHTTPStorage().Get(context.Background(), server.URL+"/notfound.mp4")
	assert.Nil(t, reader)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPStorage_Get_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPStorage().Get(context.Background(), server.URL+"/a.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPStorage_ReadOnly(t *testing.T) {
	storage := NewHTTPStorage()
	ctx := context.Background()

	assert.True(t, errors.Is(storage.Put(ctx, "https://example.com/file.mp4", nil), ErrReadOnly))
	assert.True(t, errors.Is(storage.Delete(ctx, "https://example.com/file.mp4"), ErrReadOnly))
}

func TestHTTPStorage_Exists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/exists.mp4" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	storage := NewHTTPStorage()
	ctx := context.Background()

	exists, err := storage.Exists(ctx, server.URL+"/exists.mp4")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = storage.Exists(ctx, server.URL+"/notfound.mp4")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = storage.Exists(ctx, "s3://bucket/key")
	assert.Error(t, err)
}
