package exercise

import (
	"sync"
	"time"
)

// Clock schedules the session's periodic tick and delayed redirect
type Clock interface {
	// Every calls f once per interval until stop is called
	Every(interval time.Duration, f func()) (stop func())
	// AfterFunc calls f once after d unless stop is called first
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock is the wall-clock implementation
type SystemClock struct{}

// Every runs f on its own goroutine driven by a time.Ticker
func (SystemClock) Every(interval time.Duration, f func()) func() {
	t := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-t.C:
				f()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

// AfterFunc wraps time.AfterFunc
func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
