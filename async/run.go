package async

import "fmt"

// Run will run a function in a goroutine, returning its result via a channel.
func Run[T any](f func() T) <-chan T {
	c := make(chan T, 1)
	go func() {
		c <- f()
	}()
	return c
}

// Try calls f, capturing whatever it fails with: either its returned error, or the value it panicked with. On
// success, caught is nil.
func Try[T any](f func() (T, error)) (value T, caught any) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			caught = r
		}
	}()
	v, err := f()
	if err != nil {
		return v, err
	}
	return v, nil
}

// Panicked wraps a recovered panic value so it can travel as an error where one is required.
type Panicked struct {
	Value any
}

func (p Panicked) Error() string {
	return fmt.Sprintf("panicked: %v", p.Value)
}

// AsError converts a value caught by Try into an error.
func AsError(caught any) error {
	switch v := caught.(type) {
	case nil:
		return nil
	case error:
		return v
	default:
		return Panicked{Value: v}
	}
}
