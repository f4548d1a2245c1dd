// Package countdowntest provides a deterministic Scheduler for tests.
package countdowntest

import (
	"sync"
	"time"

	"github.com/mcdev12/timing/go/internal/countdown"
)

// ManualScheduler is a simulated clock. Nothing runs until Advance is called;
// Advance then fires every due task in time order on the calling goroutine.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	tasks  []*manualTask
	closed bool
}

// NewManualScheduler returns a scheduler at simulated time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

type manualTask struct {
	owner     *ManualScheduler
	due       time.Duration
	period    time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() {
	t.owner.mu.Lock()
	t.cancelled = true
	t.owner.mu.Unlock()
}

// RunLater schedules fn once at now+delay.
func (s *ManualScheduler) RunLater(delay time.Duration, fn func()) (countdown.Task, error) {
	return s.schedule(delay, 0, fn)
}

// RunAtFixedRate schedules fn at now+initialDelay and then every period.
func (s *ManualScheduler) RunAtFixedRate(initialDelay, period time.Duration, fn func()) (countdown.Task, error) {
	if period <= 0 {
		period = time.Second
	}
	return s.schedule(initialDelay, period, fn)
}

func (s *ManualScheduler) schedule(delay, period time.Duration, fn func()) (countdown.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, countdown.ErrSchedulerClosed
	}
	if delay < 0 {
		delay = 0
	}
	s.seq++
	task := &manualTask{
		owner:  s,
		due:    s.now + delay,
		period: period,
		seq:    s.seq,
		fn:     fn,
	}
	s.tasks = append(s.tasks, task)
	return task, nil
}

// Advance moves simulated time forward by d, running every task due at or
// before the new time. Tasks scheduled by callbacks are honoured in the same call.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
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
			next.due += next.period
		} else {
			next.cancelled = true
		}
		fn := next.fn
		s.mu.Unlock()

		fn()
	}
}

// Flush runs every task due at the current time without moving the clock.
func (s *ManualScheduler) Flush() {
	s.Advance(0)
}

func (s *ManualScheduler) nextDueLocked(target time.Duration) *manualTask {
	var next *manualTask
	live := s.tasks[:0]
	for _, task := range s.tasks {
		if task.cancelled {
			continue
		}
		live = append(live, task)
		if task.due > target {
			continue
		}
		if next == nil || task.due < next.due || (task.due == next.due && task.seq < next.seq) {
			next = task
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
	return next
}

// Now returns the simulated time elapsed since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of tasks that have not been cancelled or run.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.tasks {
		if !task.cancelled {
			n++
		}
	}
	return n
}

// Close rejects further scheduling and cancels everything outstanding.
func (s *ManualScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, task := range s.tasks {
		task.cancelled = true
	}
	s.tasks = nil
}
