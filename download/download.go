// Package download provides a scoped working directory for writing files, so that a file only appears at its target
// path once it has been completely written.
package download

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type downloadConfig struct {
	baseTargetDir string
	baseTempDir   string
}

type DownloadConfigOption func(*downloadConfig)

func WithTargetDir(dir string) DownloadConfigOption {
	return func(c *downloadConfig) {
		c.baseTargetDir = dir
	}
}

func WithTempDir(dir string) DownloadConfigOption {
	return func(c *downloadConfig) {
		c.baseTempDir = dir
	}
}

type DownloadState struct {
	config  downloadConfig
	tempDir string
}

func newDownloadState(config downloadConfig) (*DownloadState, error) {
	// Create target directory
	if len(config.baseTargetDir) > 0 {
		if err := os.MkdirAll(config.baseTargetDir, 0755); err != nil {
			return nil, err
		}
	}
	// Create temporary directory
	tempDir, err := os.MkdirTemp(config.baseTempDir, ".bsky-video-dl-*")
	if err != nil {
		return nil, err
	}
	state := &DownloadState{
		config:  config,
		tempDir: tempDir,
	}
	return state, nil
}

func (s *DownloadState) close() {
	// Clean up temporary directory
	if err := os.RemoveAll(s.tempDir); err != nil {
		zap.S().Named("download").Warnw("failed to clean up download state", "temp_dir", s.tempDir, "error", err)
	}
}

func (s *DownloadState) CreateTemp(pattern string) (*os.File, error) {
	return os.CreateTemp(s.tempDir, pattern)
}

// TargetPath resolves a file name relative to the target directory.
func (s *DownloadState) TargetPath(name string) string {
	return filepath.Join(s.config.baseTargetDir, name)
}

// Commit moves a completed temporary file to its target path, replacing any existing file.
func (s *DownloadState) Commit(tempPath string, targetPath string) error {
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// WithDownloadState runs f with a fresh temporary directory, which is removed afterwards regardless of outcome.
// The temporary directory defaults to the system temp dir; use WithTempDir to put it on the same filesystem as the
// target so that Commit is atomic.
func WithDownloadState(f func(state *DownloadState) error, opts ...DownloadConfigOption) error {
	config := downloadConfig{
		baseTargetDir: "",
		baseTempDir:   os.TempDir(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if state, err := newDownloadState(config); err != nil {
		return err
	} else {
		defer state.close()
		return f(state)
	}
}
