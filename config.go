package bsky_video_dl

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

const DefaultFileTemplate = "bluesky_video.{{.Ext}}"

type SaveConfig struct {
	TargetDir          string
	TargetFileTemplate *template.Template
}

func NewSaveConfig() SaveConfig {
	return SaveConfig{
		TargetDir:          ".",
		TargetFileTemplate: template.Must(ParseFileTemplate(DefaultFileTemplate)),
	}
}

func ParseFileTemplate(text string) (*template.Template, error) {
	return template.New("target_file").Option("missingkey=error").Parse(text)
}

// GetTargetPath renders the file name for a video and joins it onto TargetDir.
func (c SaveConfig) GetTargetPath(ext string, info *VideoInfo) (string, error) {
	args := targetFileTemplateArgs{
		Ext:  ext,
		Info: info,
	}
	builder := strings.Builder{}
	if err := c.TargetFileTemplate.Execute(&builder, &args); err != nil {
		return "", err
	}
	name := builder.String()
	if name == "" || name != filepath.Base(name) || strings.Trim(name, ".") == "" {
		return "", fmt.Errorf("invalid target file name %q", name)
	}
	return filepath.Join(c.TargetDir, name), nil
}

type targetFileTemplateArgs struct {
	Ext  string
	Info *VideoInfo
}
