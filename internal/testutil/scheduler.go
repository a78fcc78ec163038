package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/tuncanbit/qrpay/internal/task"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// ManualScheduler is a task.Scheduler driven by Advance instead of wall time.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	seq     int
	due     time.Time
	period  time.Duration
	fn      func()
	stopped bool
	owner   *ManualScheduler
}

func (t *manualTask) Stop() {
	t.owner.mu.Lock()
	t.stopped = true
	t.owner.mu.Unlock()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{now: epoch}
}

// Now is the scheduler's virtual clock; pass it where a component wants a time source.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) Every(d time.Duration, fn func()) task.Handle {
	return s.add(d, d, fn)
}

func (s *ManualScheduler) After(d time.Duration, fn func()) task.Handle {
	return s.add(d, 0, fn)
}

func (s *ManualScheduler) add(delay, period time.Duration, fn func()) task.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTask{seq: s.seq, due: s.now.Add(delay), period: period, fn: fn, owner: s}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every task that falls due in
// order. The lock is released while a body runs so bodies may schedule or stop tasks.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.due
		if next.period > 0 {
			next.due = next.due.Add(next.period)
		} else {
			next.stopped = true
		}
		fn := next.fn
		s.mu.Unlock()

		fn()
	}
}

func (s *ManualScheduler) nextDueLocked(target time.Time) *manualTask {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.stopped {
			live = append(live, t)
		}
	}
	s.tasks = live

	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].due.Equal(s.tasks[j].due) {
			return s.tasks[i].seq < s.tasks[j].seq
		}
		return s.tasks[i].due.Before(s.tasks[j].due)
	})
	if len(s.tasks) == 0 || s.tasks[0].due.After(target) {
		return nil
	}
	return s.tasks[0]
}

// Pending reports how many tasks are still scheduled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}
