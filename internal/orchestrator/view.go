package orchestrator

import (
	"fmt"
	"strconv"

	"github.com/alanbriolat/bsky-video-dl"
)

// InfoPanel is the display form of the video metadata. Empty fields are not shown.
type InfoPanel struct {
	Format     string `json:"format"`
	Size       string `json:"size,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

func NewInfoPanel(info *bsky_video_dl.VideoInfo) *InfoPanel {
	panel := &InfoPanel{Format: info.Format()}
	if size := info.Size.UnwrapOrDefault(); size > 0 {
		panel.Size = FormatSize(size)
	}
	if aspect, ok := info.AspectRatio.Get(); ok {
		panel.Resolution = aspect.String()
	}
	return panel
}

// FormatSize renders a byte count in binary units: "N bytes", then "N.N KB", then "N.N MB".
func FormatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

// Preview describes the player for the video: always with controls, muted and not autoplaying.
type Preview struct {
	Source   string `json:"source"`
	MimeType string `json:"mimeType"`
	Controls bool   `json:"controls"`
	Muted    bool   `json:"muted"`
	Autoplay bool   `json:"autoplay"`
	// AspectPadding is the bottom padding of the aspect box, e.g. "56.25%", or empty if the aspect ratio is unknown.
	AspectPadding string `json:"aspectPadding,omitempty"`
}

func NewPreview(source string, info *bsky_video_dl.VideoInfo) *Preview {
	p := &Preview{
		Source:   source,
		MimeType: info.MimeType,
		Controls: true,
		Muted:    true,
		Autoplay: false,
	}
	if aspect, ok := info.AspectRatio.Get(); ok {
		if padding, ok := aspect.PaddingPercent(); ok {
			p.AspectPadding = strconv.FormatFloat(padding, 'f', -1, 64) + "%"
		}
	}
	return p
}
