package pubsub

// NewFilteredSender wraps s so that only messages accepted by f are passed on; a nil f accepts everything. Closing
// either one closes both.
func NewFilteredSender[T any](s SenderCloser[T], f func(T) bool) SenderCloser[T] {
	return &filteredSender[T]{SenderCloser: s, accept: f}
}

type filteredSender[T any] struct {
	SenderCloser[T]
	accept func(T) bool
}

// Send reports success for a rejected message, as long as the underlying sender is still open.
func (s *filteredSender[T]) Send(msg T) bool {
	select {
	case <-s.Closed():
		return false
	default:
	}
	if s.accept != nil && !s.accept(msg) {
		return true
	}
	return s.SenderCloser.Send(msg)
}
