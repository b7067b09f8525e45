package orchestrator

import (
	"context"

	"github.com/alanbriolat/bsky-video-dl"
	"github.com/alanbriolat/bsky-video-dl/async"
	"github.com/alanbriolat/bsky-video-dl/internal/lpc"
	"github.com/alanbriolat/bsky-video-dl/internal/normalize"
	"github.com/alanbriolat/bsky-video-dl/internal/resource"
)

// A result is the outcome of some asynchronous step of a run.
type result interface {
	RunID() uint64
}

type runResult struct {
	runID  uint64
	caught any
}

func (r runResult) RunID() uint64 {
	return r.runID
}

type infoResult struct {
	runResult
	info *bsky_video_dl.VideoInfo
}

type bytesResult struct {
	runResult
	data []byte
}

type saveResult struct {
	runResult
	command *lpc.Command[context.Context, string]
	path    string
}

func (o *Orchestrator) run() {
	defer close(o.done)

	for {
		select {
		case <-o.ctx.Done():
			o.teardown()
			return
		case v, ok := <-o.inputs.Receive():
			if ok {
				o.startRun(v.URL)
			}
		case r := <-o.results:
			o.handleResult(r)
		case c := <-o.stateCommand:
			_ = c.Respond(o.state)
		case c := <-o.saveCommand:
			o.startSave(c)
		}
	}
}

func (o *Orchestrator) teardown() {
	o.runCancel()
	o.abandonSave()
	o.releaseResource()
	o.inputs.Close()
	o.events.Close()
}

func (o *Orchestrator) releaseResource() {
	if o.resource.Release() {
		o.log.Debugw("released preview", "run_id", o.state.RunID, "preview", o.resource.Preview.ID)
	}
	o.resource = nil
}

func (o *Orchestrator) update(f func(s *State)) {
	f(&o.state)
	o.events.Send(o.state)
}

// deliver hands a result back to the run() goroutine, unless the orchestrator is shutting down.
func (o *Orchestrator) deliver(r result) {
	select {
	case o.results <- r:
	case <-o.ctx.Done():
	}
}

// startRun supersedes whatever run is active: its context is cancelled, its preview released, and any results it
// still produces will be discarded.
func (o *Orchestrator) startRun(postURL string) {
	o.runCancel()
	o.abandonSave()
	o.releaseResource()

	runID := o.state.RunID + 1
	o.runCtx, o.runCancel = context.WithCancel(o.ctx)
	o.log.Infow("starting run", "run_id", runID, "url", postURL)

	o.update(func(s *State) {
		*s = initialState()
		s.RunID = runID
		s.URL = postURL
		s.Phase = PhaseFetchingInfo
		s.Status = StatusFetchingInfo
	})

	ctx, resolver := o.runCtx, o.config.Resolver
	go func() {
		info, caught := async.Try(func() (*bsky_video_dl.VideoInfo, error) {
			return resolver.FetchInfo(ctx, postURL)
		})
		o.deliver(infoResult{runResult{runID, caught}, info})
	}()
}

func (o *Orchestrator) handleResult(r result) {
	if saved, ok := r.(saveResult); ok {
		o.finishSave(saved)
		return
	}
	if r.RunID() != o.state.RunID {
		o.log.Debugw("discarding stale result", "run_id", r.RunID(), "active_run_id", o.state.RunID)
		return
	}
	switch r := r.(type) {
	case infoResult:
		o.handleInfo(r)
	case bytesResult:
		o.handleBytes(r)
	}
}

func (o *Orchestrator) fail(caught any) {
	message := normalize.Friendly(caught)
	o.log.Infow("run failed", "run_id", o.state.RunID, "error", caught, "message", message)
	o.update(func(s *State) {
		s.Phase = PhaseError
		s.Status = message
		s.StatusKind = StatusKindError
	})
}

func (o *Orchestrator) handleInfo(r infoResult) {
	if r.caught != nil || r.info == nil {
		o.fail(r.caught)
		return
	}
	info := r.info
	o.update(func(s *State) {
		s.Metadata = info
		s.Info = NewInfoPanel(info)
		s.Phase = PhaseFetchingBytes
		s.Status = StatusFetchingBytes
	})

	ctx, resolver, runID, postURL := o.runCtx, o.config.Resolver, r.runID, o.state.URL
	go func() {
		data, caught := async.Try(func() ([]byte, error) {
			return resolver.FetchBytes(ctx, postURL)
		})
		o.deliver(bytesResult{runResult{runID, caught}, data})
	}()
}

func (o *Orchestrator) handleBytes(r bytesResult) {
	if r.caught != nil {
		o.fail(r.caught)
		return
	}
	o.resource = o.config.Store.NewResource(r.data, o.state.Metadata.MimeType)
	o.log.Infow("video ready", "run_id", o.state.RunID, "preview", o.resource.Preview.ID)
	preview := NewPreview(o.resource.Preview.URL, o.state.Metadata)
	o.update(func(s *State) {
		s.Preview = preview
		s.SaveVisible = true
		s.SaveEnabled = true
		s.Phase = PhaseReady
		s.Status = StatusReady
	})
}

func (o *Orchestrator) startSave(c *lpc.Command[context.Context, string]) {
	if o.resource == nil {
		_ = c.RespondError(ErrNoResource)
		return
	}
	if o.savingRunID == o.state.RunID {
		_ = c.RespondError(ErrNotReady)
		return
	}
	o.savingRunID = o.state.RunID
	o.labelBeforeSave = o.state.SaveLabel
	o.update(func(s *State) {
		s.SaveEnabled = false
		s.SaveLabel = LabelSaving
		s.Phase = PhaseDownloading
	})

	ctx, cancel := context.WithCancel(c.Arg())
	o.saveCancel = cancel
	runID, blob, info := o.state.RunID, o.resource.Blob, o.state.Metadata
	store, saver := o.config.Store, o.config.Saver
	go func() {
		var path string
		var caught any
		// The save gets its own handle, released as soon as the saver returns
		err := store.WithHandle(blob, func(h resource.Handle) error {
			source, size, err := store.Reader(h)
			if err != nil {
				return err
			}
			path, caught = async.Try(func() (string, error) {
				return saver.Save(ctx, bsky_video_dl.SaveRequest{
					Source: source,
					Size:   int64(size),
					Ext:    info.Extension(),
					Info:   info,
				})
			})
			return nil
		})
		if err != nil {
			caught = err
		}
		o.deliver(saveResult{runResult{runID, caught}, c, path})
	}()
}

// abandonSave cancels the save in flight, if any, so that it no longer holds up a new save. Its result is still
// delivered to its caller, but no longer touches the state.
func (o *Orchestrator) abandonSave() {
	if o.savingRunID == 0 {
		return
	}
	o.log.Debugw("abandoning save", "run_id", o.savingRunID)
	o.saveCancel()
	o.saveCancel = func() {}
	o.savingRunID = 0
}

func (o *Orchestrator) finishSave(r saveResult) {
	if r.runID == o.savingRunID {
		o.saveCancel()
		o.saveCancel = func() {}
		o.savingRunID = 0
	}
	if r.runID == o.state.RunID {
		if r.caught == nil {
			o.log.Infow("saved", "run_id", r.runID, "path", r.path)
			o.update(func(s *State) {
				s.Phase = PhaseReady
				s.Status = StatusSaved
				s.StatusKind = StatusKindSuccess
				s.SaveLabel = LabelSaveAgain
				s.SavedPath = r.path
				s.SaveEnabled = true
			})
		} else {
			message := normalize.MessageOr(r.caught, MessageSaveFailed)
			o.log.Warnw("save failed", "run_id", r.runID, "error", r.caught, "message", message)
			o.update(func(s *State) {
				s.Phase = PhaseError
				s.Status = message
				s.StatusKind = StatusKindError
				s.SaveLabel = o.labelBeforeSave
				s.SaveEnabled = true
			})
		}
	} else {
		o.log.Debugw("save finished for superseded run", "run_id", r.runID, "active_run_id", o.state.RunID)
	}
	_ = r.command.Reply(r.path, async.AsError(r.caught))
}
