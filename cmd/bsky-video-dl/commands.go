package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/internal/address"
	"github.com/alanbriolat/bsky-video-dl/internal/boltdb"
	"github.com/alanbriolat/bsky-video-dl/internal/intake"
	"github.com/alanbriolat/bsky-video-dl/internal/orchestrator"
	"github.com/alanbriolat/bsky-video-dl/internal/pubsub"
	"github.com/alanbriolat/bsky-video-dl/internal/session"
	"github.com/alanbriolat/bsky-video-dl/internal/web"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "serve the web view",
	Flags: serveFlags,
	Action: func(c *cli.Context) (err error) {
		resolver, cc, err := newResolver(c)
		if err != nil {
			return err
		}
		defer cc.Close()
		saveConfig, err := newSaveConfig(c)
		if err != nil {
			return err
		}

		config := session.DefaultConfig
		config.Resolver = resolver
		config.Saver = bsky_video_dl.NewFileSaver(saveConfig)
		config.BlobURLPrefix = web.BlobPath
		if path := c.String("state-db"); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
				return err
			}
			db, err := boltdb.New(path)
			if err != nil {
				return fmt.Errorf("failed to open state database: %w", err)
			}
			config.Address = db
		}
		s, err := session.New(config, c.Context)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := s.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr)
			}
		}()
		if err := s.Restore(c.Context); err != nil {
			zap.S().Warnw("failed to restore address", "error", err)
		}

		webConfig := web.DefaultConfig
		webConfig.Listen = c.String("listen")
		return web.New(webConfig, s).ListenAndServe(c.Context)
	},
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "check, fetch and save the video from each post",
	ArgsUsage: "URL...",
	Flags:     saveFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit("at least one post URL is required", 2)
		}
		resolver, cc, err := newResolver(c)
		if err != nil {
			return err
		}
		defer cc.Close()
		saveConfig, err := newSaveConfig(c)
		if err != nil {
			return err
		}
		for _, postURL := range c.Args().Slice() {
			if err := get(c.Context, resolver, saveConfig, postURL); err != nil {
				return err
			}
		}
		return nil
	},
}

func get(ctx context.Context, resolver bsky_video_dl.Resolver, saveConfig bsky_video_dl.SaveConfig, postURL string) error {
	log := zap.S().With("url", postURL)
	saver := bsky_video_dl.NewFileSaver(saveConfig)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		var bar *progressbar.ProgressBar
		saver.Progress = func(written int64, expected int64) {
			if bar == nil {
				bar = progressbar.DefaultBytes(expected, "saving")
			}
			_ = bar.Set64(written)
		}
	}

	config := session.DefaultConfig
	config.Resolver = resolver
	config.Saver = saver
	s, err := session.New(config, ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	// Settled once the run either has a video to save or has failed to get one
	settled, err := s.SubscribeFiltered(func(e session.Event) bool {
		u, ok := e.(session.OrchestratorUpdated)
		return ok && (u.NewState.Phase == orchestrator.PhaseReady || u.NewState.Phase == orchestrator.PhaseError)
	})
	if err != nil {
		return err
	}
	defer settled.Close()

	if err := s.Intake().SetURL(ctx, postURL); err != nil {
		return err
	}
	checked := s.Intake().State()
	switch checked.Status {
	case intake.StatusConfirmed:
	case intake.StatusError:
		return errors.New(checked.Error)
	default:
		return fmt.Errorf("not a bluesky post URL: %q", postURL)
	}

	var state orchestrator.State
	select {
	case e, ok := <-settled.Receive():
		if !ok {
			return orchestrator.ErrClosed
		}
		state = e.(session.OrchestratorUpdated).NewState
	case <-ctx.Done():
		return ctx.Err()
	}
	if state.Phase == orchestrator.PhaseError {
		return errors.New(state.Status)
	}
	log.Infow("fetched", "format", state.Info.Format, "size", state.Info.Size, "resolution", state.Info.Resolution)

	path, err := s.Orchestrator().Save(ctx)
	if err != nil {
		return err
	}
	var size string
	if state.Metadata != nil && state.Metadata.Size.IsSome() {
		size = humanize.IBytes(uint64(state.Metadata.Size.Unwrap()))
	}
	fmt.Fprintln(os.Stderr)
	fmt.Printf("%s\t%s\n", path, size)
	return nil
}

var checkCommand = &cli.Command{
	Name:      "check",
	Usage:     "check whether a post has a video",
	ArgsUsage: "URL",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("exactly one post URL is required", 2)
		}
		resolver, cc, err := newResolver(c)
		if err != nil {
			return err
		}
		defer cc.Close()

		validated := pubsub.NewPublisher[intake.Validated]()
		defer validated.Close()
		in := intake.New(resolver, validated, address.NewMemory(nil))
		defer in.Close()
		if err := in.SetURL(c.Context, c.Args().First()); err != nil {
			return err
		}
		state := in.State()
		switch state.Status {
		case intake.StatusConfirmed:
			fmt.Println("video found.")
			return nil
		case intake.StatusError:
			return cli.Exit(state.Error, 1)
		default:
			return cli.Exit("not a bluesky post URL.", 1)
		}
	},
}

var infoCommand = &cli.Command{
	Name:      "info",
	Usage:     "show the format, size and resolution of a post's video",
	ArgsUsage: "URL",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("exactly one post URL is required", 2)
		}
		resolver, cc, err := newResolver(c)
		if err != nil {
			return err
		}
		defer cc.Close()

		info, err := resolver.FetchInfo(c.Context, c.Args().First())
		if err != nil {
			return err
		}
		panel := orchestrator.NewInfoPanel(info)
		fmt.Printf("format:\t%s\n", panel.Format)
		if panel.Size != "" {
			fmt.Printf("size:\t%s\n", panel.Size)
		}
		if panel.Resolution != "" {
			fmt.Printf("resolution:\t%s\n", panel.Resolution)
		}
		fmt.Printf("cid:\t%s\n", info.ContentID)
		fmt.Printf("mime type:\t%s\n", info.MimeType)
		return nil
	},
}
