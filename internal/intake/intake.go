// Package intake owns the post URL the user is typing: whether it looks like a post link, whether it has been
// checked, and the "validated" signal sent when a checked post turns out to have a video.
package intake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/async"
	"github.com/alanbriolat/bsky-video-dl/internal/address"
	"github.com/alanbriolat/bsky-video-dl/internal/normalize"
	"github.com/alanbriolat/bsky-video-dl/internal/pubsub"
	"github.com/alanbriolat/bsky-video-dl/internal/sync_"
)

const (
	PostPrefix = "https://bsky.app/profile/"

	LabelCheck    = "check"
	LabelChecking = "checking..."

	MessageNoVideo = "no video found in this post."
)

var (
	ErrNotReady = errors.New("check is not available")
	ErrClosed   = errors.New("intake closed")
)

type Status string

const (
	StatusEmpty       Status = "empty"
	StatusInvalid     Status = "invalid"
	StatusValidSyntax Status = "valid"
	StatusChecking    Status = "checking"
	StatusError       Status = "error"
	StatusConfirmed   Status = "confirmed"
)

// Validated is broadcast once a post URL has passed the existence check.
type Validated struct {
	URL string `json:"url"`
}

type State struct {
	Raw         string `json:"raw"`
	Status      Status `json:"status"`
	CanCheck    bool   `json:"canCheck"`
	ButtonLabel string `json:"buttonLabel"`
	Error       string `json:"error,omitempty"`
	// Confirmed is the most recent URL that passed the existence check.
	Confirmed string `json:"confirmed,omitempty"`
}

func initialState() State {
	return State{Status: StatusEmpty, ButtonLabel: LabelCheck}
}

// IsValid checks the shape of a post link. Anything deeper is left to the existence check.
func IsValid(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, PostPrefix) && strings.Contains(text[len(PostPrefix):], "/post/")
}

type Intake struct {
	resolver  bsky_video_dl.Resolver
	validated pubsub.Sender[Validated]
	address   address.Address
	log       *zap.SugaredLogger

	state *sync_.Mutexed[State]
	// publishing keeps changes published in the order they were made, without holding up readers of state
	publishing sync.Mutex
	events     pubsub.Publisher[State]
	closed     sync_.Event
}

// New creates an Intake that checks posts with resolver, sends Validated on validated, and mirrors confirmed URLs
// into addr (which may be nil).
func New(resolver bsky_video_dl.Resolver, validated pubsub.Sender[Validated], addr address.Address) *Intake {
	return &Intake{
		resolver:  resolver,
		validated: validated,
		address:   addr,
		log:       zap.S().Named("intake"),
		state:     sync_.NewMutexed(initialState()),
		events:    pubsub.NewPublisher[State](),
	}
}

// update applies f to the state under the lock, then publishes the result if anything changed, even if f fails.
func (in *Intake) update(f func(s *State) error) error {
	in.publishing.Lock()
	defer in.publishing.Unlock()
	var changed bool
	var updated State
	err := in.state.Locked(func(s *State) error {
		old := *s
		err := f(s)
		changed, updated = *s != old, *s
		return err
	})
	if changed {
		in.events.Send(updated)
	}
	return err
}

func edit(s *State, text string) bool {
	valid := IsValid(text)
	s.Raw = text
	switch {
	case valid:
		s.Status = StatusValidSyntax
	case strings.TrimSpace(text) == "":
		s.Status = StatusEmpty
	default:
		s.Status = StatusInvalid
	}
	s.Error = ""
	s.CanCheck = valid
	return valid
}

// Edit replaces the input text, returning whether it looks like a post link.
func (in *Intake) Edit(text string) (valid bool) {
	if in.closed.IsSet() {
		return false
	}
	_ = in.update(func(s *State) error {
		valid = edit(s, text)
		return nil
	})
	return valid
}

// Check asks the resolver whether the current post has a video. It fails with ErrNotReady if the check action is
// disabled; any failure of the check itself is shown in the state instead of returned.
func (in *Intake) Check(ctx context.Context) error {
	if in.closed.IsSet() {
		return ErrClosed
	}
	var postURL string
	err := in.update(func(s *State) error {
		if !s.CanCheck || !edit(s, s.Raw) {
			return ErrNotReady
		}
		postURL = strings.TrimSpace(s.Raw)
		s.Status = StatusChecking
		s.CanCheck = false
		s.ButtonLabel = LabelChecking
		return nil
	})
	if err != nil {
		return err
	}

	log := in.log.With("url", postURL)
	log.Debug("checking")
	hasVideo, caught := async.Try(func() (bool, error) {
		return in.resolver.HasVideo(ctx, postURL)
	})
	if caught == nil && hasVideo {
		in.replaceAddress(postURL)
		in.validated.Send(Validated{URL: postURL})
		log.Info("validated")
	}

	return in.update(func(s *State) error {
		switch {
		case caught != nil:
			s.Status = StatusError
			s.Error = normalize.Friendly(caught)
			log.Infow("check failed", "error", caught, "message", s.Error)
		case hasVideo:
			s.Status = StatusConfirmed
			s.Confirmed = postURL
		default:
			s.Status = StatusError
			s.Error = MessageNoVideo
			log.Info("no video")
		}
		s.CanCheck = true
		s.ButtonLabel = LabelCheck
		return nil
	})
}

func (in *Intake) replaceAddress(postURL string) {
	if in.address == nil {
		return
	}
	current, err := in.address.Current()
	if err == nil {
		err = in.address.Replace(address.WithPostURL(current, postURL))
	}
	if err != nil {
		in.log.Warnw("failed to update address", "url", postURL, "error", err)
	}
}

// Enter is the keyboard shortcut for Check, doing nothing while the check action is disabled.
func (in *Intake) Enter(ctx context.Context) error {
	if !in.State().CanCheck {
		return nil
	}
	if err := in.Check(ctx); !errors.Is(err, ErrNotReady) {
		return err
	}
	return nil
}

// SetURL replaces the input text and, if it looks like a post link, checks it straight away.
func (in *Intake) SetURL(ctx context.Context, postURL string) error {
	if in.closed.IsSet() {
		return ErrClosed
	}
	if !in.Edit(postURL) {
		return nil
	}
	return in.Check(ctx)
}

func (in *Intake) State() State {
	return in.state.Get()
}

// Subscribe receives every state change. The receiver must be drained, or closed when no longer needed.
func (in *Intake) Subscribe() (pubsub.ReceiverCloser[State], error) {
	return in.events.Subscribe()
}

func (in *Intake) Close() {
	if in.closed.Set() {
		in.events.Close()
	}
}
