package generic

import "fmt"

// Result is a (T, error) pair that can travel as one value, e.g. through a channel.
type Result[T any] struct {
	Value T
	Error error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}

func (r Result[T]) IsOk() bool {
	return r.Error == nil
}

func (r Result[T]) IsErr() bool {
	return r.Error != nil
}

// Parts splits the Result back into its (T, error) pair.
func (r Result[T]) Parts() (T, error) {
	return r.Value, r.Error
}

// Unwrap returns value, panicking if err is set. For calls that can only fail on a broken environment.
func Unwrap[T any](value T, err error) T {
	if err != nil {
		panic(fmt.Errorf("Unwrap() on error: %w", err))
	}
	return value
}
