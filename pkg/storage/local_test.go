package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_GetPut(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "nested", "test.txt")
	testContent := "hello world"

	storage := NewLocalStorage()
	ctx := context.Background()

	uri := "file://" + testFile
	err := storage.Put(ctx, uri, strings.NewReader(testContent))
	require.NoError(t, err)
	assert.FileExists(t, testFile)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(testFile))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// plain paths address the same file
	reader, err := storage.Get(ctx, testFile)
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, testContent, string(content))
}

func TestLocalStorage_GetMissing(t *testing.T) {
	_, err := NewLocalStorage().Get(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorage_RejectsRemote(t *testing.T) {
	_, err := NewLocalStorage().Get(context.Background(), "s3://bucket/key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only supports file paths")
}

func TestLocalStorage_Exists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "existing.txt")
	require.NoError(t, os.WriteFile(existingFile, []byte("test"), 0644))

	storage := NewLocalStorage()
	ctx := context.Background()

	exists, err := storage.Exists(ctx, "file://"+existingFile)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = storage.Exists(ctx, filepath.Join(tmpDir, "nonexistent.txt"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_Delete(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "delete-me.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test"), 0644))

	storage := NewLocalStorage()
	ctx := context.Background()

	require.NoError(t, storage.Delete(ctx, "file://"+testFile))
	_, err := os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, storage.Delete(ctx, testFile))
}
