// Package bsky resolves videos embedded in Bluesky posts through the public AT Protocol XRPC API.
package bsky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/generic"
	"github.com/alanbriolat/bsky-video-dl/internal/cache"
	"github.com/alanbriolat/bsky-video-dl/util"
)

const (
	VideoEmbedType = "app.bsky.embed.video"
	PostCollection = "app.bsky.feed.post"
)

var (
	ErrNoEmbed     = errors.New("no embed found")
	ErrNotVideo    = errors.New("not a video post")
	ErrNoVideoData = errors.New("no video data")
	ErrBlobTooBig  = errors.New("video is too large")
)

type Config struct {
	AppViewURL   string
	PLCURL       string
	DIDWebScheme string
	UserAgent    string
	Timeout      time.Duration
	CacheTTL     time.Duration
	MaxBlobSize  int64
}

var DefaultConfig = Config{
	AppViewURL:   "https://public.api.bsky.app",
	PLCURL:       "https://plc.directory",
	DIDWebScheme: "https",
	UserAgent:    "bsky-video-dl/0.1.0",
	Timeout:      2 * time.Minute,
	CacheTTL:     10 * time.Minute,
	MaxBlobSize:  100 * 1024 * 1024,
}

type Resolver struct {
	config Config
	client *http.Client
	cache  cache.Cache
	log    *zap.SugaredLogger
}

var _ bsky_video_dl.Resolver = (*Resolver)(nil)

// New creates a Resolver. If c is nil, resolution results are cached in memory.
func New(config Config, c cache.Cache) *Resolver {
	if c == nil {
		c = cache.NewMemory()
	}
	config.AppViewURL = strings.TrimRight(config.AppViewURL, "/")
	config.PLCURL = strings.TrimRight(config.PLCURL, "/")
	if config.DIDWebScheme == "" {
		config.DIDWebScheme = DefaultConfig.DIDWebScheme
	}
	return &Resolver{
		config: config,
		client: &http.Client{
			Transport: &userAgentTransport{Base: http.DefaultTransport, UserAgent: config.UserAgent},
			Timeout:   config.Timeout,
		},
		cache: c,
		log:   zap.S().Named("bsky"),
	}
}

type blobRef struct {
	Link string `json:"$link"`
}

type videoBlob struct {
	Ref      blobRef `json:"ref"`
	MimeType string  `json:"mimeType"`
	Size     *int64  `json:"size"`
}

type embed struct {
	Type        string                     `json:"$type"`
	Video       *videoBlob                 `json:"video"`
	AspectRatio *bsky_video_dl.AspectRatio `json:"aspectRatio"`
}

type postRecord struct {
	Value struct {
		Embed *embed `json:"embed"`
	} `json:"value"`
}

type resolvedPost struct {
	DID  string
	PDS  string
	Info *bsky_video_dl.VideoInfo
}

// resolvePost goes from a post URL to the video embedded in it: handle to DID, DID to PDS, then the post record.
func (r *Resolver) resolvePost(ctx context.Context, postURL string) (*resolvedPost, error) {
	ref, err := util.ParsePostURL(postURL)
	if err != nil {
		return nil, err
	}
	did := ref.Actor
	if !ref.IsDID() {
		if did, err = r.resolveHandle(ctx, ref.Actor); err != nil {
			return nil, err
		}
	}
	pds, err := r.resolvePDS(ctx, did)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("repo", did)
	q.Set("collection", PostCollection)
	q.Set("rkey", ref.RKey)
	var record postRecord
	err = r.getJSON(ctx, pds+"/xrpc/com.atproto.repo.getRecord?"+q.Encode(), &record, func(status int, _ []byte) string {
		switch status {
		case http.StatusNotFound:
			return "post not found. check that the URL is correct."
		case http.StatusBadRequest:
			return "invalid post URL."
		default:
			return fmt.Sprintf("failed to fetch post (status: %d).", status)
		}
	})
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return nil, err
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}

	e := record.Value.Embed
	if e == nil {
		return nil, ErrNoEmbed
	}
	if e.Type != VideoEmbedType {
		return nil, ErrNotVideo
	}
	if e.Video == nil {
		return nil, ErrNoVideoData
	}
	info := &bsky_video_dl.VideoInfo{
		ContentID:   e.Video.Ref.Link,
		MimeType:    e.Video.MimeType,
		Size:        generic.OptionFromPointer(e.Video.Size),
		AspectRatio: generic.OptionFromPointer(e.AspectRatio),
	}
	return &resolvedPost{DID: did, PDS: pds, Info: info}, nil
}

func (r *Resolver) FetchInfo(ctx context.Context, postURL string) (*bsky_video_dl.VideoInfo, error) {
	post, err := r.resolvePost(ctx, postURL)
	if err != nil {
		return nil, err
	}
	r.log.Debugw("video info", "url", postURL, "cid", post.Info.ContentID, "mime_type", post.Info.MimeType)
	return post.Info, nil
}

// HasVideo is FetchInfo, where a post that exists but has no video is a definite "no" rather than an error.
func (r *Resolver) HasVideo(ctx context.Context, postURL string) (bool, error) {
	_, err := r.resolvePost(ctx, postURL)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNoEmbed), errors.Is(err, ErrNotVideo), errors.Is(err, ErrNoVideoData):
		r.log.Debugw("no video", "url", postURL, "reason", err)
		return false, nil
	default:
		return false, err
	}
}

func (r *Resolver) FetchBytes(ctx context.Context, postURL string) ([]byte, error) {
	post, err := r.resolvePost(ctx, postURL)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("did", post.DID)
	q.Set("cid", post.Info.ContentID)
	blobURL := post.PDS + "/xrpc/com.atproto.sync.getBlob?" + q.Encode()
	resp, err := r.get(ctx, blobURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			URL:        blobURL,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to download video. Status: %d", resp.StatusCode),
		}
	}

	limit := r.config.MaxBlobSize
	if limit <= 0 {
		limit = DefaultConfig.MaxBlobSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read video bytes: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (limit %s)", ErrBlobTooBig, humanize.IBytes(uint64(limit)))
	}
	r.log.Infow("video downloaded", "url", postURL, "size", humanize.Bytes(uint64(len(data))))
	return data, nil
}
