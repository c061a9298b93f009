package pubsub

import (
	"errors"
	"sync"
)

const (
	DefaultPublisherBufSize  = 16
	DefaultSubscriberBufSize = 16
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
)

type Publisher[T any] interface {
	SenderCloser[T]
	Subscribe() (ReceiverCloser[T], error)
	SubscribeBufSize(int) (ReceiverCloser[T], error)
}

type publisher[T any] struct {
	mu          sync.Mutex
	ch          Channel[T]
	running     sync.WaitGroup // Fan-out goroutine
	pending     sync.WaitGroup // Messages not yet sent to all subscribers
	subscribers map[Channel[T]]struct{}
	closed      bool
}

func NewPublisher[T any]() Publisher[T] {
	return NewPublisherBufSize[T](DefaultPublisherBufSize)
}

func NewPublisherBufSize[T any](bufSize int) Publisher[T] {
	p := &publisher[T]{
		ch:          NewChannel[T](bufSize),
		subscribers: make(map[Channel[T]]struct{}),
	}
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		for v := range p.ch.Receive() {
			for _, s := range p.snapshot() {
				if ok := s.Send(v); !ok {
					p.unsubscribe(s)
				}
			}
			p.pending.Done()
		}
	}()
	return p
}

// Send will publish the value to all subscribers. It only blocks while the publisher's own buffer is full.
func (p *publisher[T]) Send(msg T) bool {
	p.pending.Add(1)
	if ok := p.ch.Send(msg); !ok {
		p.pending.Done()
		return false
	}
	return true
}

func (p *publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	return p.SubscribeBufSize(DefaultSubscriberBufSize)
}

func (p *publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPublisherClosed
	}
	s := NewChannel[T](bufSize)
	p.subscribers[s] = struct{}{}
	return s, nil
}

func (p *publisher[T]) snapshot() []Channel[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	subscribers := make([]Channel[T], 0, len(p.subscribers))
	for s := range p.subscribers {
		subscribers = append(subscribers, s)
	}
	return subscribers
}

func (p *publisher[T]) unsubscribe(s Channel[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, s)
}

// Close idempotently shuts down the publisher after flushing pending messages, closing all subscribers too.
func (p *publisher[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.ch.Close()
	p.pending.Wait()
	p.running.Wait()

	for _, s := range p.snapshot() {
		s.Close()
		p.unsubscribe(s)
	}
}
