package generic

import "fmt"

// Result carries a conventional (T, error) pair through a channel or a struct field.
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

func (r *Result[T]) IsErr() bool {
	return r.Error != nil
}

func (r *Result[T]) IsOk() bool {
	return r.Error == nil
}

// Parts splits the Result[T] back into (T, error).
func (r Result[T]) Parts() (T, error) {
	return r.Value, r.Error
}

// Unwrap returns the value, panicking if there is an error. Only for errors that can't happen, and tests.
func (r Result[T]) Unwrap() T {
	if r.Error != nil {
		panic(fmt.Errorf("unwrapped an error result: %w", r.Error))
	}
	return r.Value
}

// Unwrap is a shortcut for NewResult(value, err).Unwrap().
func Unwrap[T any](value T, err error) T {
	return NewResult(value, err).Unwrap()
}

// Unwrap_ panics if err is not nil.
func Unwrap_(err error) {
	NewResult(NewVoid(), err).Unwrap()
}
