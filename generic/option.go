package generic

// Option holds a value or nothing. The zero value is None, which lets callers tell "not given" apart from a
// given zero value (e.g. an empty string).
type Option[T any] struct {
	Value    T
	hasValue bool
}

// IsNone returns true if this Option[T] does not have a value.
func (o *Option[T]) IsNone() bool {
	return !o.hasValue
}

// IsSome returns true if this Option[T] has a value.
func (o *Option[T]) IsSome() bool {
	return o.hasValue
}

// Get returns the contained value and whether there was one, comma-ok style.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.hasValue
}

// UnwrapOr returns the contained value, or other if there is no value.
func (o Option[T]) UnwrapOr(other T) T {
	if o.hasValue {
		return o.Value
	} else {
		return other
	}
}

// Some constructs an Option[T] that has a value.
func Some[T any](value T) Option[T] {
	return Option[T]{Value: value, hasValue: true}
}

// None constructs an Option[T] that does not have a value.
func None[T any]() Option[T] {
	return Option[T]{hasValue: false}
}
