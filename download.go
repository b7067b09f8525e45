package bsky_video_dl

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/alanbriolat/bsky-video-dl/download"
)

// A SaveRequest is one save-as-file interaction for a resolved video.
type SaveRequest struct {
	Source io.Reader
	Size   int64
	Ext    string
	Info   *VideoInfo
}

// A Saver writes a video somewhere the user can get at it, returning where it went.
type Saver interface {
	Save(ctx context.Context, req SaveRequest) (string, error)
}

type SaverFunc func(ctx context.Context, req SaveRequest) (string, error)

func (f SaverFunc) Save(ctx context.Context, req SaveRequest) (string, error) {
	return f(ctx, req)
}

// FileSaver saves videos into SaveConfig.TargetDir. The file is written to a temporary name in the same directory
// first, then moved into place.
type FileSaver struct {
	Config SaveConfig
	// Progress, if set, is called after each write with the bytes written so far and the expected total.
	Progress func(written int64, expected int64)
}

func NewFileSaver(config SaveConfig) *FileSaver {
	return &FileSaver{Config: config}
}

func (s *FileSaver) Save(ctx context.Context, req SaveRequest) (targetPath string, err error) {
	log := Logger(ctx)
	ext := req.Ext
	if ext == "" {
		ext = req.Info.Extension()
	}
	if targetPath, err = s.Config.GetTargetPath(ext, req.Info); err != nil {
		return "", fmt.Errorf("failed to build target path: %w", err)
	}

	err = download.WithDownloadState(func(state *download.DownloadState) error {
		f, err := state.CreateTemp("*." + ext)
		if err != nil {
			return fmt.Errorf("failed to open temporary file: %w", err)
		}
		p := &progress{expected: req.Size, callback: s.Progress}
		_, err = io.Copy(io.MultiWriter(f, p), NewReaderContext(ctx, req.Source))
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to write video: %w", err)
		}
		log.Debugw("video written", "temp_path", f.Name(), "size", humanize.Bytes(uint64(p.written)))
		return state.Commit(f.Name(), targetPath)
	}, download.WithTargetDir(s.Config.TargetDir), download.WithTempDir(s.Config.TargetDir))
	if err != nil {
		return "", err
	}
	log.Infow("video saved", "path", targetPath)
	return targetPath, nil
}

// progress ignores the data but counts the bytes, so it should be the last writer in an io.MultiWriter.
type progress struct {
	written  int64
	expected int64
	callback func(int64, int64)
}

func (p *progress) Write(b []byte) (n int, err error) {
	n = len(b)
	p.written += int64(n)
	if p.callback != nil {
		p.callback(p.written, p.expected)
	}
	return n, nil
}
