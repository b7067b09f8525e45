package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/internal/cache"
	"github.com/alanbriolat/bsky-video-dl/internal/web"
	"github.com/alanbriolat/bsky-video-dl/provider/bsky"
)

func envVars(name string) []string {
	return []string{"BSKY_VIDEO_DL_" + name}
}

var resolverFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log debug output, including every state change",
	},
	&cli.StringFlag{
		Name:    "appview",
		Value:   bsky.DefaultConfig.AppViewURL,
		Usage:   "resolve handles and posts through the AppView at `URL`",
		EnvVars: envVars("APPVIEW"),
	},
	&cli.StringFlag{
		Name:    "plc",
		Value:   bsky.DefaultConfig.PLCURL,
		Usage:   "resolve did:plc identities through the directory at `URL`",
		EnvVars: envVars("PLC"),
	},
	&cli.StringFlag{
		Name:    "user-agent",
		Value:   bsky.DefaultConfig.UserAgent,
		Usage:   "send `UA` as the User-Agent of every request",
		EnvVars: envVars("USER_AGENT"),
	},
	&cli.DurationFlag{
		Name:    "timeout",
		Value:   bsky.DefaultConfig.Timeout,
		Usage:   "give up on any single request after `DURATION`",
		EnvVars: envVars("TIMEOUT"),
	},
	&cli.StringFlag{
		Name:    "redis-addr",
		Usage:   "cache identity resolution in Redis at `ADDR` instead of in memory",
		EnvVars: envVars("REDIS_ADDR"),
	},
}

var saveFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "save-dir",
		Value:   ".",
		Usage:   "save downloaded videos to `DIR`",
		EnvVars: envVars("SAVE_DIR"),
	},
	&cli.StringFlag{
		Name:    "file-template",
		Value:   bsky_video_dl.DefaultFileTemplate,
		Usage:   "name saved videos with `TEMPLATE`, which can use {{.Ext}} and {{.Info.ContentID}}",
		EnvVars: envVars("FILE_TEMPLATE"),
	},
}

var serveFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:    "listen",
		Value:   web.DefaultConfig.Listen,
		Usage:   "serve the web view on `ADDR`",
		EnvVars: envVars("LISTEN"),
	},
	&cli.StringFlag{
		Name:    "state-db",
		Value:   defaultStateDB(),
		Usage:   "remember the shared address in `FILE`; empty to keep it in memory",
		EnvVars: envVars("STATE_DB"),
	},
}, saveFlags...)

func defaultStateDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, "state.db")
}

// newResolver builds the bsky resolver from the global flags. The returned cache must be closed by the caller.
func newResolver(c *cli.Context) (*bsky.Resolver, cache.Cache, error) {
	config := bsky.DefaultConfig
	config.AppViewURL = c.String("appview")
	config.PLCURL = c.String("plc")
	config.UserAgent = c.String("user-agent")
	config.Timeout = c.Duration("timeout")

	var cc cache.Cache = cache.NewMemory()
	if addr := c.String("redis-addr"); addr != "" {
		redis, err := cache.NewRedis(c.Context, addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cc = redis
	}
	return bsky.New(config, cc), cc, nil
}

func newSaveConfig(c *cli.Context) (bsky_video_dl.SaveConfig, error) {
	config := bsky_video_dl.NewSaveConfig()
	config.TargetDir = c.String("save-dir")
	tmpl, err := bsky_video_dl.ParseFileTemplate(c.String("file-template"))
	if err != nil {
		return config, fmt.Errorf("invalid file template: %w", err)
	}
	config.TargetFileTemplate = tmpl
	return config, nil
}
