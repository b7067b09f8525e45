package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/async"
	"github.com/alanbriolat/bsky-video-dl/internal/address"
	"github.com/alanbriolat/bsky-video-dl/internal/intake"
	"github.com/alanbriolat/bsky-video-dl/internal/orchestrator"
	"github.com/alanbriolat/bsky-video-dl/internal/pubsub"
	"github.com/alanbriolat/bsky-video-dl/internal/resource"
	"github.com/alanbriolat/bsky-video-dl/internal/sync_"
)

type Config struct {
	Resolver bsky_video_dl.Resolver
	Saver    bsky_video_dl.Saver
	// Address is where confirmed URLs are mirrored and replayed from; the Session closes it if it's an io.Closer.
	// An in-memory address is used if nil.
	Address address.Address
	// BlobURLPrefix is prepended to preview handle IDs to make their URLs.
	BlobURLPrefix string
	// EventBufSize is the buffer size of each Subscribe() receiver.
	EventBufSize int
}

var DefaultConfig = Config{
	Saver:         bsky_video_dl.NewFileSaver(bsky_video_dl.NewSaveConfig()),
	BlobURLPrefix: resource.DefaultURLPrefix,
	EventBufSize:  16,
}

// Session wires one intake to one orchestrator through a Validated bus, and merges everything they do into a single
// event stream.
type Session struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	validated    pubsub.Publisher[intake.Validated]
	intake       *intake.Intake
	orchestrator *orchestrator.Orchestrator
	store        *resource.Store

	events  pubsub.Publisher[Event]
	running sync.WaitGroup
	closed  sync_.Event
}

func New(config Config, ctx context.Context) (_ *Session, err error) {
	if config.Resolver == nil {
		return nil, fmt.Errorf("session requires a resolver")
	}
	if config.Address == nil {
		config.Address = address.NewMemory(nil)
	}
	if config.EventBufSize <= 0 {
		config.EventBufSize = DefaultConfig.EventBufSize
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("session"),

		validated: pubsub.NewPublisher[intake.Validated](),
		store:     resource.NewStore(config.BlobURLPrefix),
		events:    pubsub.NewPublisher[Event](),
	}
	s.intake = intake.New(config.Resolver, s.validated, config.Address)
	s.orchestrator = orchestrator.New(ctx, orchestrator.Config{
		Resolver: config.Resolver,
		Saver:    config.Saver,
		Store:    s.store,
	})
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	// The orchestrator gets its own subscription to the bus, and so does the event stream
	toOrchestrator, err := s.validated.Subscribe()
	if err != nil {
		return nil, err
	}
	s.orchestrator.AddSource(toOrchestrator)
	validated, err := s.validated.SubscribeBufSize(config.EventBufSize)
	if err != nil {
		return nil, err
	}
	intakeStates, err := s.intake.Subscribe()
	if err != nil {
		return nil, err
	}
	orchestratorStates, err := s.orchestrator.Subscribe()
	if err != nil {
		return nil, err
	}

	forward(s, validated, func(v intake.Validated) Event {
		e := URLValidated{URL: v.URL}
		if current, err := s.config.Address.Current(); err == nil {
			e.Address = current.String()
		}
		return e
	})
	oldIntake := s.intake.State()
	forward(s, intakeStates, func(state intake.State) Event {
		e := IntakeUpdated{OldState: oldIntake, NewState: state}
		oldIntake = state
		return e
	})
	oldOrchestrator, _ := s.orchestrator.State()
	forward(s, orchestratorStates, func(state orchestrator.State) Event {
		e := OrchestratorUpdated{OldState: oldOrchestrator, NewState: state}
		oldOrchestrator = state
		return e
	})

	return s, nil
}

// forward republishes everything from r as session events, until r is closed.
func forward[T any](s *Session, r pubsub.Receiver[T], f func(T) Event) {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		for v := range r.Receive() {
			e := f(v)
			s.logEvent(e)
			s.events.Send(e)
		}
	}()
}

func (s *Session) logEvent(e Event) {
	var oldState, newState any
	switch e := e.(type) {
	case IntakeUpdated:
		oldState, newState = e.OldState, e.NewState
	case OrchestratorUpdated:
		oldState, newState = e.OldState, e.NewState
	default:
		s.log.Debugf("event: %T: %+v", e, e)
		return
	}
	changes, caught := async.Try(func() (diff.Changelog, error) {
		return diff.Diff(oldState, newState)
	})
	if caught != nil {
		s.log.Errorf("failed to diff old and new %s state: %v", e.Kind(), caught)
		return
	}
	for _, change := range changes {
		s.log.Debugf("%s: %v: %#v -> %#v", e.Kind(), change.Path, change.From, change.To)
	}
}

// Restore replays a post URL found in the shareable address, as if it had been typed in and checked.
func (s *Session) Restore(ctx context.Context) error {
	current, err := s.config.Address.Current()
	if err != nil {
		return fmt.Errorf("failed to read address: %w", err)
	}
	postURL, ok := address.PostURL(current)
	if !ok {
		return nil
	}
	s.log.Infow("restoring from address", "url", postURL)
	return s.intake.SetURL(ctx, postURL)
}

func (s *Session) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.SubscribeBufSize(s.config.EventBufSize)
}

// SubscribeFiltered is like Subscribe, but only receives events for which f returns true.
func (s *Session) SubscribeFiltered(f func(Event) bool) (pubsub.ReceiverCloser[Event], error) {
	ch := pubsub.NewChannel[Event](s.config.EventBufSize)
	if err := s.events.AddSubscriber(pubsub.NewFilteredSender[Event](ch, f), true); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *Session) Intake() *intake.Intake {
	return s.intake
}

func (s *Session) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

func (s *Session) Store() *resource.Store {
	return s.store
}

func (s *Session) Address() address.Address {
	return s.config.Address
}

func (s *Session) Close() error {
	if !s.closed.Set() {
		return nil
	}
	s.ctxCancel()
	s.intake.Close()
	s.validated.Close()
	s.orchestrator.Close()
	s.running.Wait()
	s.events.Close()

	var result *multierror.Error
	if n := s.store.Live(); n > 0 {
		result = multierror.Append(result, fmt.Errorf("%d video handle(s) still live after close", n))
	}
	if closer, ok := s.config.Address.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close address: %w", err))
		}
	}
	return result.ErrorOrNil()
}
