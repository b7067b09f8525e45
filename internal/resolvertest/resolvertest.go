// Package resolvertest provides a scriptable Resolver for tests.
package resolvertest

import (
	"context"
	"errors"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/internal/sync_"
)

var ErrNotScripted = errors.New("resolver method not scripted")

type Call struct {
	Method string
	URL    string
}

// Resolver calls whichever function is set for each method, recording every call.
type Resolver struct {
	HasVideoFunc   func(ctx context.Context, postURL string) (bool, error)
	FetchInfoFunc  func(ctx context.Context, postURL string) (*bsky_video_dl.VideoInfo, error)
	FetchBytesFunc func(ctx context.Context, postURL string) ([]byte, error)

	calls sync_.Mutexed[[]Call]
}

var _ bsky_video_dl.Resolver = (*Resolver)(nil)

// Static always finds the same video.
func Static(info *bsky_video_dl.VideoInfo, data []byte) *Resolver {
	return &Resolver{
		HasVideoFunc: func(context.Context, string) (bool, error) { return true, nil },
		FetchInfoFunc: func(context.Context, string) (*bsky_video_dl.VideoInfo, error) {
			i := *info
			return &i, nil
		},
		FetchBytesFunc: func(context.Context, string) ([]byte, error) { return data, nil },
	}
}

func (r *Resolver) record(method string, postURL string) {
	_ = r.calls.Locked(func(calls *[]Call) error {
		*calls = append(*calls, Call{Method: method, URL: postURL})
		return nil
	})
}

// Calls returns every call made so far, in order.
func (r *Resolver) Calls() []Call {
	calls := r.calls.Get()
	return append([]Call(nil), calls...)
}

func (r *Resolver) HasVideo(ctx context.Context, postURL string) (bool, error) {
	r.record("HasVideo", postURL)
	if r.HasVideoFunc == nil {
		return false, ErrNotScripted
	}
	return r.HasVideoFunc(ctx, postURL)
}

func (r *Resolver) FetchInfo(ctx context.Context, postURL string) (*bsky_video_dl.VideoInfo, error) {
	r.record("FetchInfo", postURL)
	if r.FetchInfoFunc == nil {
		return nil, ErrNotScripted
	}
	return r.FetchInfoFunc(ctx, postURL)
}

func (r *Resolver) FetchBytes(ctx context.Context, postURL string) ([]byte, error) {
	r.record("FetchBytes", postURL)
	if r.FetchBytesFunc == nil {
		return nil, ErrNotScripted
	}
	return r.FetchBytesFunc(ctx, postURL)
}

// Gate blocks callers of Wait until Open is called with their value.
type Gate[T any] struct {
	ch chan T
}

func NewGate[T any]() *Gate[T] {
	return &Gate[T]{ch: make(chan T)}
}

// Wait blocks until Open is called, or ctx ends.
func (g *Gate[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-g.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Open releases exactly one waiter with v, blocking until there is one.
func (g *Gate[T]) Open(v T) {
	g.ch <- v
}
