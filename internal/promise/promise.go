// Package promise provides a single-assignment result that many goroutines can race to settle and wait on. Whichever
// of Resolve or Reject is called first wins; every later call reports ErrSettled and leaves the result untouched.
package promise

import (
	"context"
	"errors"
	"sync"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/internal/sync_"
)

var (
	ErrSettled = errors.New("promise already settled")
)

type Promise[T any] struct {
	mu     sync.Mutex
	result generic.Result[T]
	done   sync_.Event
}

func New[T any]() *Promise[T] {
	return &Promise[T]{}
}

// Resolve settles the promise with a value, unless it was already settled.
func (p *Promise[T]) Resolve(value T) error {
	return p.settle(generic.Ok(value))
}

// Reject settles the promise with an error, unless it was already settled.
func (p *Promise[T]) Reject(err error) error {
	if err == nil {
		panic("promise: Reject called with nil error")
	}
	return p.settle(generic.Err[T](err))
}

func (p *Promise[T]) settle(result generic.Result[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done.IsSet() {
		return ErrSettled
	}
	p.result = result
	p.done.Set()
	return nil
}

// Done returns a channel that closes once the promise is settled.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done.Wait()
}

func (p *Promise[T]) Settled() bool {
	return p.done.IsSet()
}

// Wait blocks until the promise is settled or ctx is done. A ctx error does not settle the promise.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done.Wait():
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.result.Parts()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
