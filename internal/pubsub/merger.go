package pubsub

import (
	"sync"
)

const DefaultMergerBufSize = 1

// Merger funnels any number of sources into a single Receive() channel, until it is closed.
type Merger[T any] struct {
	mu      sync.RWMutex
	ch      Channel[T]
	done    chan struct{}
	running sync.WaitGroup
	closed  bool
}

func NewMerger[T any](sources ...ReceiverCloser[T]) *Merger[T] {
	return NewMergerBufSize[T](DefaultMergerBufSize, sources...)
}

func NewMergerBufSize[T any](bufSize int, sources ...ReceiverCloser[T]) *Merger[T] {
	m := &Merger[T]{
		ch:   NewChannel[T](bufSize),
		done: make(chan struct{}),
	}
	for _, s := range sources {
		m.Add(s)
	}
	return m
}

// Add funnels source into the merger. The source is closed when it's exhausted or the merger is closed. Returns false
// (leaving source alone) if the merger is already closed.
func (m *Merger[T]) Add(source ReceiverCloser[T]) bool {
	return m.funnel(source.Receive(), source.Close)
}

// AddChan is like Add for a plain channel, which is never closed by the merger.
func (m *Merger[T]) AddChan(ch <-chan T) bool {
	return m.funnel(ch, nil)
}

func (m *Merger[T]) funnel(ch <-chan T, closeSource func()) bool {
	// Close() must either see this goroutine in running, or we must see closed
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return false
	}
	m.running.Add(1)
	m.mu.RUnlock()

	go func() {
		defer m.running.Done()
		if closeSource != nil {
			defer closeSource()
		}
		for {
			select {
			case msg, ok := <-ch:
				if !ok || !m.ch.Send(msg) {
					return
				}
			case <-m.done:
				return
			}
		}
	}()
	return true
}

func (m *Merger[T]) Receive() <-chan T {
	return m.ch.Receive()
}

// Close is idempotent, and returns once every source has been let go of.
func (m *Merger[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	close(m.done)
	m.ch.Close()
	m.running.Wait()
	m.closed = true
}

func (m *Merger[T]) Closed() <-chan struct{} {
	return m.done
}
