package sync_

import (
	"errors"
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestLockedError(t *testing.T) {
	assert := assert_.New(t)
	rw := NewRWMutexed(map[string]string{})
	boom := errors.New("boom")

	assert.Equal(boom, rw.Locked(func(m map[string]string) error {
		m["a"] = "b"
		return boom
	}))
	assert.Nil(rw.RLocked(func(m map[string]string) error {
		assert.Equal("b", m["a"])
		return nil
	}))
}

func TestRace(t *testing.T) {
	assert := assert_.New(t)
	rw := NewRWMutexed(map[string]int{})
	start := NewEvent()
	wg := sync.WaitGroup{}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start.Wait()
			for j := 0; j < 50; j++ {
				_ = rw.Locked(func(m map[string]int) error {
					m["count"]++
					return nil
				})
			}
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start.Wait()
			for j := 0; j < 50; j++ {
				_ = rw.RLocked(func(m map[string]int) error {
					_ = m["count"]
					return nil
				})
			}
		}()
	}

	start.Set()
	wg.Wait()

	var count int
	_ = rw.RLocked(func(m map[string]int) error {
		count = m["count"]
		return nil
	})
	assert.Equal(2500, count)
}
