package sync_

import (
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
)

func TestEventSync(t *testing.T) {
	assert := assert_.New(t)
	e := NewEvent()
	assert.False(e.IsSet())
	select {
	case <-e.Wait():
		assert.Fail("<-e.Wait() should be blocking")
	default:
	}
	assert.True(e.Set())
	assert.True(e.IsSet())
	select {
	case <-e.Wait():
	default:
		assert.Fail("<-e.Wait() should not block")
	}
	// Only the first Set changes the state
	assert.False(e.Set())
	assert.True(e.IsSet())
}

func TestEventAsync(t *testing.T) {
	assert := assert_.New(t)
	var e Event
	wg := sync.WaitGroup{}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-e.Wait()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		assert.Fail("event should be blocking all goroutines")
	case <-time.After(100 * time.Millisecond):
	}

	e.Set()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		assert.Fail("event should no longer be blocking")
	}
}

func TestEventSetOnce(t *testing.T) {
	assert := assert_.New(t)
	var e Event
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.Set() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(1, winners)
}
