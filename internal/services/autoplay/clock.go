package autoplay

import (
	"sync"
	"time"
)

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock arms the countdown ticker and the execution timer.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock is backed by the runtime timers.
func RealClock() Clock { return realClock{} }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Every(d time.Duration, f func()) Timer {
	t := &ticker{t: time.NewTicker(d), stop: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.stop:
				return
			case <-t.t.C:
				f()
			}
		}
	}()
	return t
}

type ticker struct {
	t    *time.Ticker
	stop chan struct{}
	once sync.Once
}

// Stop may be called from inside the tick callback.
func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.t.Stop()
		close(t.stop)
		stopped = true
	})
	return stopped
}
