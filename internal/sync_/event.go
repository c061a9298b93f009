package sync_

import "sync"

// Event is a one-shot flag that goroutines can wait on, like a Python threading.Event that is never cleared. The
// zero value is unset and ready to use.
type Event struct {
	mu    sync.Mutex
	ch    chan struct{}
	isSet bool
}

func NewEvent() *Event {
	return &Event{}
}

func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSet
}

// Set marks the Event, releasing all waiters. Only the first call returns true.
func (e *Event) Set() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isSet {
		return false
	}
	e.isSet = true
	close(e.channel())
	return true
}

// Wait returns a channel that is closed once the Event is set.
func (e *Event) Wait() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel()
}

// channel must be called with mu held.
func (e *Event) channel() chan struct{} {
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}
