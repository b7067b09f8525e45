package bsky_video_dl

import (
	"path/filepath"
	"testing"
	"text/template"

	assert_ "github.com/stretchr/testify/assert"
)

func TestSaveConfig_GetTargetPath(t *testing.T) {
	assert := assert_.New(t)
	config := NewSaveConfig()
	config.TargetDir = "videos"

	path, err := config.GetTargetPath("webm", &VideoInfo{MimeType: "video/webm"})
	assert.Nil(err)
	assert.Equal(filepath.Join("videos", "bluesky_video.webm"), path)

	config.TargetFileTemplate = template.Must(ParseFileTemplate("{{.Info.ContentID}}.{{.Ext}}"))
	path, err = config.GetTargetPath("mp4", &VideoInfo{ContentID: "bafy123"})
	assert.Nil(err)
	assert.Equal(filepath.Join("videos", "bafy123.mp4"), path)
}

func TestSaveConfig_GetTargetPath_Invalid(t *testing.T) {
	assert := assert_.New(t)
	config := NewSaveConfig()

	config.TargetFileTemplate = template.Must(ParseFileTemplate("../{{.Ext}}"))
	_, err := config.GetTargetPath("mp4", &VideoInfo{})
	assert.Error(err)

	config.TargetFileTemplate = template.Must(ParseFileTemplate(""))
	_, err = config.GetTargetPath("mp4", &VideoInfo{})
	assert.Error(err)
}
