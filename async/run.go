package async

import "github.com/alanbriolat/video-uploader/generic"

// Run will run a function in a goroutine, returning its result via a buffered channel, so the goroutine never
// blocks if nobody reads it.
func Run[T any](f func() T) <-chan T {
	c := make(chan T, 1)
	go func() {
		c <- f()
	}()
	return c
}

// RunResult is Run for functions with a conventional (T, error) return.
func RunResult[T any](f func() (T, error)) <-chan generic.Result[T] {
	return Run(func() generic.Result[T] {
		return generic.NewResult(f())
	})
}
