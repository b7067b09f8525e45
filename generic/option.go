package generic

// Option holds a value that may be absent, e.g. a metadata field a record didn't carry. The zero Option is None.
type Option[T any] struct {
	Value    T
	hasValue bool `diff:"-"`
}

func Some[T any](value T) Option[T] {
	return Option[T]{Value: value, hasValue: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

// OptionFromPointer is None for nil, otherwise Some of the pointed-to value.
func OptionFromPointer[T any](p *T) Option[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

func (o Option[T]) IsSome() bool {
	return o.hasValue
}

func (o Option[T]) IsNone() bool {
	return !o.hasValue
}

// Get is the comma-ok form of Unwrap.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.hasValue
}

// Unwrap panics on None.
func (o Option[T]) Unwrap() T {
	if !o.hasValue {
		panic("Unwrap() on None")
	}
	return o.Value
}

func (o Option[T]) UnwrapOr(other T) T {
	if o.hasValue {
		return o.Value
	}
	return other
}

func (o Option[T]) UnwrapOrDefault() T {
	var zero T
	return o.UnwrapOr(zero)
}
