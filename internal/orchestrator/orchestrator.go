// Package orchestrator turns validated post URLs into a previewable, saveable video: it fetches the metadata, then
// the bytes, holds the resulting resource, and saves it on request.
package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/generic"
	"github.com/alanbriolat/bsky-video-dl/internal/intake"
	"github.com/alanbriolat/bsky-video-dl/internal/lpc"
	"github.com/alanbriolat/bsky-video-dl/internal/pubsub"
	"github.com/alanbriolat/bsky-video-dl/internal/resource"
	"github.com/alanbriolat/bsky-video-dl/internal/sync_"
)

const (
	StatusFetchingInfo  = "fetching video information..."
	StatusFetchingBytes = "loading video preview..."
	StatusReady         = "ready to download"
	StatusSaved         = "download complete!"

	LabelSave      = "download video"
	LabelSaving    = "downloading..."
	LabelSaveAgain = "download again"

	MessageSaveFailed = "failed to download video"
)

var (
	ErrClosed     = errors.New("orchestrator closed")
	ErrNoResource = errors.New("no video to save")
	ErrNotReady   = errors.New("save already in progress")
)

type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseFetchingInfo  Phase = "fetching_info"
	PhaseFetchingBytes Phase = "fetching_bytes"
	PhaseReady         Phase = "ready"
	PhaseDownloading   Phase = "downloading"
	PhaseError         Phase = "error"
)

var busyPhases = generic.NewSet(PhaseFetchingInfo, PhaseFetchingBytes, PhaseDownloading)

// IsBusy returns true while a resolver call or save is outstanding.
func (p Phase) IsBusy() bool {
	return busyPhases.Contains(p)
}

type StatusKind string

const (
	StatusKindNone    StatusKind = ""
	StatusKindError   StatusKind = "error"
	StatusKindSuccess StatusKind = "success"
)

type State struct {
	RunID       uint64                   `json:"runId"`
	Phase       Phase                    `json:"phase"`
	URL         string                   `json:"url,omitempty"`
	Status      string                   `json:"status,omitempty"`
	StatusKind  StatusKind               `json:"statusKind,omitempty"`
	Info        *InfoPanel               `json:"info,omitempty"`
	Preview     *Preview                 `json:"preview,omitempty"`
	SaveVisible bool                     `json:"saveVisible"`
	SaveEnabled bool                     `json:"saveEnabled"`
	SaveLabel   string                   `json:"saveLabel"`
	Metadata    *bsky_video_dl.VideoInfo `json:"metadata,omitempty"`
	SavedPath   string                   `json:"savedPath,omitempty"`
}

func initialState() State {
	return State{Phase: PhaseIdle, SaveLabel: LabelSave}
}

type Config struct {
	Resolver bsky_video_dl.Resolver
	Saver    bsky_video_dl.Saver
	// Store holds the fetched videos; a private one is created if nil.
	Store *resource.Store
}

var DefaultConfig = Config{
	Saver: bsky_video_dl.NewFileSaver(bsky_video_dl.NewSaveConfig()),
}

type Orchestrator struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	events  pubsub.Publisher[State]
	inputs  *pubsub.Merger[intake.Validated]
	results chan result

	stateCommand chan *lpc.Command[generic.Void, State]
	saveCommand  chan *lpc.Command[context.Context, string]
	closed       sync_.Event
	done         chan struct{}

	// Owned by the run() goroutine
	state           State
	runCtx          context.Context
	runCancel       context.CancelFunc
	resource        *resource.Resource
	savingRunID     uint64 // 0 when no save is in flight
	saveCancel      context.CancelFunc
	labelBeforeSave string
}

func New(ctx context.Context, config Config) *Orchestrator {
	if config.Store == nil {
		config.Store = resource.NewStore(resource.DefaultURLPrefix)
	}
	ctx, cancel := context.WithCancel(ctx)
	o := &Orchestrator{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("orchestrator"),

		events:  pubsub.NewPublisher[State](),
		inputs:  pubsub.NewMerger[intake.Validated](),
		results: make(chan result),

		stateCommand: make(chan *lpc.Command[generic.Void, State]),
		saveCommand:  make(chan *lpc.Command[context.Context, string]),
		done:         make(chan struct{}),

		state:     initialState(),
		runCtx:    ctx,
		runCancel:  func() {},
		saveCancel: func() {},
	}
	go o.run()
	return o
}

// AddSource subscribes the orchestrator to another stream of Validated signals. The source is closed along with the
// orchestrator.
func (o *Orchestrator) AddSource(source pubsub.ReceiverCloser[intake.Validated]) bool {
	return o.inputs.Add(source)
}

// State returns a snapshot of the current run.
func (o *Orchestrator) State() (State, error) {
	s, err := lpc.Call(context.Background(), o.stateCommand, o.done, generic.NewVoid())
	if errors.Is(err, lpc.ErrActorDone) {
		return s, ErrClosed
	}
	return s, err
}

// Save writes the current video through the Saver, returning where it was saved. The outcome is also shown in the
// state; the video itself is kept either way, so a failed save can be retried.
func (o *Orchestrator) Save(ctx context.Context) (string, error) {
	path, err := lpc.Call(ctx, o.saveCommand, o.done, ctx)
	if errors.Is(err, lpc.ErrActorDone) {
		return path, ErrClosed
	}
	return path, err
}

// Subscribe receives every state change. The receiver must be drained, or closed when no longer needed.
func (o *Orchestrator) Subscribe() (pubsub.ReceiverCloser[State], error) {
	return o.events.Subscribe()
}

// Store is where the preview handle of the current run can be opened.
func (o *Orchestrator) Store() *resource.Store {
	return o.config.Store
}

// Close tears the orchestrator down, abandoning any run in progress and releasing its preview handle.
func (o *Orchestrator) Close() {
	if o.closed.Set() {
		o.ctxCancel()
	}
	<-o.done
}

func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}
