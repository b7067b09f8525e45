package bsky_video_dl

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/alanbriolat/bsky-video-dl/generic"
)

const DefaultExtension = "mp4"

// A Resolver determines whether a post embeds a video, and fetches its metadata and bytes.
//
// Any method may fail with an error, and implementations are also allowed to panic; callers are expected to catch
// both (see async.Try).
type Resolver interface {
	HasVideo(ctx context.Context, postURL string) (bool, error)
	FetchInfo(ctx context.Context, postURL string) (*VideoInfo, error)
	FetchBytes(ctx context.Context, postURL string) ([]byte, error)
}

type AspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (a AspectRatio) String() string {
	return fmt.Sprintf("%d × %d", a.Width, a.Height)
}

// PaddingPercent is the height as a percentage of the width, for a padding-based aspect box.
func (a AspectRatio) PaddingPercent() (float64, bool) {
	if a.Width <= 0 || a.Height <= 0 {
		return 0, false
	}
	return float64(a.Height) / float64(a.Width) * 100, true
}

type VideoInfo struct {
	ContentID   string                      `json:"cid"`
	MimeType    string                      `json:"mimeType"`
	Size        generic.Option[int64]       `json:"size"`
	AspectRatio generic.Option[AspectRatio] `json:"aspectRatio"`
}

// Subtype is the lowercase MIME subtype, without parameters, e.g. "mp4" for "video/mp4".
func (i *VideoInfo) Subtype() string {
	if i == nil {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(i.MimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(i.MimeType))
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok {
		return ""
	}
	// Only reachable for unparseable types, e.g. "video/mp4/x" or "video/mp4;codecs"
	if i := strings.IndexAny(subtype, "/;"); i >= 0 {
		subtype = subtype[:i]
	}
	return strings.TrimSpace(subtype)
}

// Format is the display format of the video, e.g. "MP4".
func (i *VideoInfo) Format() string {
	return strings.ToUpper(i.Subtype())
}

// Extension is the file extension for saving the video, without the leading dot.
func (i *VideoInfo) Extension() string {
	if subtype := i.Subtype(); subtype != "" {
		return subtype
	}
	return DefaultExtension
}
