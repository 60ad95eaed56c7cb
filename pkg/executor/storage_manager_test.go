package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
	"github.com/chicogong/ffmpeg-chain/pkg/storage"
)

func TestStorageManager_PrepareInputsLocal(t *testing.T) {
	sm := NewStorageManager(storage.NewMux())
	spec := &schemas.CommandSpec{Inputs: []schemas.InputArg{
		{Node: 0, Path: "/media/in.mp4"},
		{Node: 1, Path: "file:///media/music.flac"},
	}}

	inputs, err := sm.PrepareInputs(context.Background(), spec, t.TempDir())
	require.NoError(t, err)

	// Plain paths stay, file URIs become plain paths
	assert.Equal(t, map[int]string{1: "/media/music.flac"}, inputs)
}

func TestStorageManager_PrepareInputsUnknownScheme(t *testing.T) {
	sm := NewStorageManager(storage.NewMux())
	spec := &schemas.CommandSpec{Inputs: []schemas.InputArg{{Node: 0, Path: "s3://bucket/in.mp4"}}}

	_, err := sm.PrepareInputs(context.Background(), spec, t.TempDir())
	assert.Error(t, err)
}

func TestStorageManager_PrepareOutputs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "renders", "2026", "out.mp4")

	mux := storage.NewMux()
	mux.Handle("https", storage.NewHTTPStorage())
	sm := NewStorageManager(mux)

	spec := &schemas.CommandSpec{Outputs: []schemas.OutputArg{
		{Node: 3, Path: nested},
		{Node: 4, Path: "https://cdn.example.com/out/thumb.jpg"},
	}}

	outputs, err := sm.PrepareOutputs(spec, dir)
	require.NoError(t, err)

	assert.Equal(t, map[int]string{4: filepath.Join(dir, "output-4-thumb.jpg")}, outputs)
	info, err := os.Stat(filepath.Dir(nested))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStorageManager_UploadOutputsMissingLocal(t *testing.T) {
	mux := storage.NewMux()
	mux.Handle("https", storage.NewHTTPStorage())
	sm := NewStorageManager(mux)

	spec := &schemas.CommandSpec{Outputs: []schemas.OutputArg{{Node: 2, Path: "https://cdn.example.com/a.mp4"}}}
	err := sm.UploadOutputs(context.Background(), spec, map[int]string{})
	assert.ErrorContains(t, err, "output file not found for node 2")
}

func TestStorageManager_CleanupTempDir(t *testing.T) {
	sm := NewStorageManager(storage.NewMux())

	assert.Error(t, sm.CleanupTempDir(""))
	assert.Error(t, sm.CleanupTempDir("/"))
	assert.Error(t, sm.CleanupTempDir("/srv/media"))

	dir, err := os.MkdirTemp("", "ffmpeg-chain-*")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0644))

	require.NoError(t, sm.CleanupTempDir(dir))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
