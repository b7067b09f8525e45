package lpc

import (
	"context"
	"errors"
)

var (
	ErrActorDone = errors.New("actor has stopped")
)

// Call sends a new Command with arg to an actor goroutine and waits for its response. It gives up if ctx ends or if
// the actor signals done before responding.
func Call[Arg any, Response any](ctx context.Context, commands chan<- *Command[Arg, Response], done <-chan struct{}, arg Arg) (Response, error) {
	var zero Response
	c := (*Command[Arg, Response]).New(nil, arg)
	select {
	case commands <- c:
	case <-done:
		return zero, ErrActorDone
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case <-c.done.Wait():
		return c.response.Parts()
	case <-done:
		// The actor may have responded just before stopping
		if c.done.IsSet() {
			return c.response.Parts()
		}
		return zero, ErrActorDone
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
