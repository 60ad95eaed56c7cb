package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
	"github.com/chicogong/ffmpeg-chain/pkg/storage"
)

// StorageManager moves command inputs and outputs between storage backends
// and a local work directory
type StorageManager struct {
	mux    *storage.Mux
	logger logrus.FieldLogger
}

// NewStorageManager creates a new storage manager
func NewStorageManager(mux *storage.Mux) *StorageManager {
	discard := logrus.New()
	discard.Out = io.Discard
	return &StorageManager{mux: mux, logger: discard}
}

// localName picks a file name for a staged location. The node id keeps
// names unique; the base name keeps the extension FFmpeg uses to pick a
// muxer.
func localName(prefix string, node int, uri string) string {
	name := prefix
	if _, path, err := storage.ParseURI(uri); err == nil {
		base := filepath.Base(path)
		if base != "" && base != "." && base != "/" {
			name = base
		}
	}
	return fmt.Sprintf("%s-%d-%s", prefix, node, name)
}

// DownloadInput fetches uri into dir and returns the local path. Local
// files are not copied; their plain path is returned.
func (sm *StorageManager) DownloadInput(ctx context.Context, node int, uri, dir string) (string, error) {
	scheme, path, err := storage.ParseURI(uri)
	if err != nil {
		return "", err
	}
	if scheme == "file" {
		return path, nil
	}

	reader, err := sm.mux.Get(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", uri, err)
	}
	defer reader.Close()

	tempPath := filepath.Join(dir, localName("input", node, uri))
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tempFile.Close()

	n, err := io.Copy(tempFile, reader)
	if err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	sm.logger.WithFields(logrus.Fields{"uri": uri, "bytes": n}).Debug("input staged")
	return tempPath, nil
}

// PrepareInputs stages every input of spec that FFmpeg cannot read as a
// plain file. The result maps node ids to local paths, for
// CommandSpec.Relocate; inputs already usable as-is are absent.
func (sm *StorageManager) PrepareInputs(ctx context.Context, spec *schemas.CommandSpec, dir string) (map[int]string, error) {
	inputMap := make(map[int]string)
	fetched := make(map[string]string)

	for _, in := range spec.Inputs {
		if local, ok := fetched[in.Path]; ok {
			inputMap[in.Node] = local
			continue
		}
		local, err := sm.DownloadInput(ctx, in.Node, in.Path, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare input %s: %w", in.Path, err)
		}
		fetched[in.Path] = local
		if local != in.Path {
			inputMap[in.Node] = local
		}
	}

	return inputMap, nil
}

// PrepareOutputs picks a local path in dir for every remote output and
// creates the parent directory of every local one.
func (sm *StorageManager) PrepareOutputs(spec *schemas.CommandSpec, dir string) (map[int]string, error) {
	outputMap := make(map[int]string)

	for _, out := range spec.Outputs {
		scheme, path, err := storage.ParseURI(out.Path)
		if err != nil {
			return nil, err
		}
		if scheme != "file" {
			if _, err := sm.mux.For(out.Path); err != nil {
				return nil, err
			}
			outputMap[out.Node] = filepath.Join(dir, localName("output", out.Node, out.Path))
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create destination directory: %w", err)
		}
		if path != out.Path {
			outputMap[out.Node] = path
		}
	}

	return outputMap, nil
}

// UploadOutput uploads a local file to a remote destination
func (sm *StorageManager) UploadOutput(ctx context.Context, localPath, destURI string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	if err := sm.mux.Put(ctx, destURI, file); err != nil {
		return fmt.Errorf("failed to upload to %s: %w", destURI, err)
	}

	sm.logger.WithField("uri", destURI).Debug("output published")
	return nil
}

// UploadOutputs publishes every remote output of spec from the local path
// PrepareOutputs chose for it
func (sm *StorageManager) UploadOutputs(ctx context.Context, spec *schemas.CommandSpec, locals map[int]string) error {
	for _, out := range spec.Outputs {
		if storage.IsLocal(out.Path) {
			continue
		}
		localPath, ok := locals[out.Node]
		if !ok {
			return fmt.Errorf("output file not found for node %d", out.Node)
		}
		if err := sm.UploadOutput(ctx, localPath, out.Path); err != nil {
			return fmt.Errorf("failed to upload output %d: %w", out.Node, err)
		}
	}

	return nil
}

// CleanupTempDir removes temporary directory and all its contents
func (sm *StorageManager) CleanupTempDir(tempDir string) error {
	if tempDir == "" || tempDir == "/" || tempDir == "." {
		return fmt.Errorf("invalid temp directory: %s", tempDir)
	}

	// Only cleanup if it's in a temp location
	if !strings.HasPrefix(filepath.Clean(tempDir), filepath.Clean(os.TempDir())) &&
		!strings.Contains(tempDir, "tmp") && !strings.Contains(tempDir, "temp") {
		return fmt.Errorf("refusing to cleanup non-temp directory: %s", tempDir)
	}

	return os.RemoveAll(tempDir)
}
