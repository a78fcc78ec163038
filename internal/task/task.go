package task

import (
	"sync"
	"time"
)

// Handle controls a scheduled task. Stop is idempotent and never blocks on a
// running body; a body already executing finishes, but no further run starts.
type Handle interface {
	Stop()
}

// Scheduler runs functions after a delay or on a fixed period.
type Scheduler interface {
	Every(d time.Duration, fn func()) Handle
	After(d time.Duration, fn func()) Handle
}

type handle struct {
	done chan struct{}
	once sync.Once
}

func newHandle() *handle {
	return &handle{done: make(chan struct{})}
}

func (h *handle) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *handle) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// RealScheduler backs tasks with wall-clock timers. Each task runs its body on
// a single goroutine, so a repeating body never overlaps itself.
type RealScheduler struct{}

func NewRealScheduler() *RealScheduler {
	return &RealScheduler{}
}

func (RealScheduler) Every(d time.Duration, fn func()) Handle {
	h := newHandle()
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				if h.stopped() {
					return
				}
				fn()
			}
		}
	}()
	return h
}

func (RealScheduler) After(d time.Duration, fn func()) Handle {
	h := newHandle()
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-h.done:
		case <-timer.C:
			if !h.stopped() {
				fn()
			}
		}
	}()
	return h
}

// StopAll stops every non-nil handle.
func StopAll(handles ...Handle) {
	for _, h := range handles {
		if h != nil {
			h.Stop()
		}
	}
}
