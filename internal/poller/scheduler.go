package poller

import "time"

// CancelFunc stops a scheduled timer. Safe to call more than once.
type CancelFunc func()

// Scheduler abstracts the repeating and one-shot timers the controller
// needs, so tests can drive ticks without real time.
type Scheduler interface {
	// Every invokes fn repeatedly at the given interval until cancelled.
	Every(interval time.Duration, fn func()) CancelFunc
	// After invokes fn once after the given wait unless cancelled.
	After(wait time.Duration, fn func()) CancelFunc
}

// TimeScheduler implements Scheduler on the runtime clock.
type TimeScheduler struct{}

func (TimeScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	var once bool
	return func() {
		if once {
			return
		}
		once = true
		ticker.Stop()
		close(done)
	}
}

func (TimeScheduler) After(wait time.Duration, fn func()) CancelFunc {
	timer := time.AfterFunc(wait, fn)
	return func() { timer.Stop() }
}
