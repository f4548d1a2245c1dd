package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Task is a handle to scheduled work.
type Task interface {
	// Cancel prevents any further invocation of the task. It never blocks on the
	// task's goroutine and is safe to call more than once, including from inside
	// the task's own callback.
	Cancel()
}

// Scheduler runs deferred and periodic work. Callbacks are never invoked
// synchronously from RunLater or RunAtFixedRate.
type Scheduler interface {
	RunLater(delay time.Duration, fn func()) (Task, error)
	RunAtFixedRate(initialDelay, period time.Duration, fn func()) (Task, error)
}

// ClockScheduler is the production Scheduler. Every task is driven by its own
// goroutine waiting on a clockwork timer or ticker, so tests can substitute a
// fake clock.
type ClockScheduler struct {
	clock clockwork.Clock

	mu     sync.Mutex
	closed bool
	tasks  map[*clockTask]struct{}
	wg     sync.WaitGroup
}

// NewClockScheduler creates a scheduler driven by clock.
func NewClockScheduler(clock clockwork.Clock) *ClockScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockScheduler{
		clock: clock,
		tasks: make(map[*clockTask]struct{}),
	}
}

type clockTask struct {
	stop chan struct{}
	once sync.Once
}

func (t *clockTask) Cancel() {
	t.once.Do(func() { close(t.stop) })
}

func (t *clockTask) cancelled() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// RunLater invokes fn once after delay unless the task is cancelled first.
func (s *ClockScheduler) RunLater(delay time.Duration, fn func()) (Task, error) {
	task, err := s.register()
	if err != nil {
		return nil, err
	}

	go func() {
		defer s.release(task)

		if delay > 0 {
			timer := s.clock.NewTimer(delay)
			select {
			case <-timer.Chan():
			case <-task.stop:
				stopAndDrainTimer(timer)
				return
			}
		}
		if task.cancelled() {
			return
		}
		fn()
	}()

	return task, nil
}

// RunAtFixedRate invokes fn after initialDelay and then every period until the
// task is cancelled. A non-positive initialDelay fires the first call right away.
func (s *ClockScheduler) RunAtFixedRate(initialDelay, period time.Duration, fn func()) (Task, error) {
	if period <= 0 {
		period = time.Second
	}
	task, err := s.register()
	if err != nil {
		return nil, err
	}

	go func() {
		defer s.release(task)

		if initialDelay > 0 {
			timer := s.clock.NewTimer(initialDelay)
			select {
			case <-timer.Chan():
			case <-task.stop:
				stopAndDrainTimer(timer)
				return
			}
		}

		ticker := s.clock.NewTicker(period)
		defer ticker.Stop()

		if task.cancelled() {
			return
		}
		fn()

		for {
			select {
			case <-task.stop:
				return
			case <-ticker.Chan():
				if task.cancelled() {
					return
				}
				fn()
			}
		}
	}()

	return task, nil
}

// Close cancels every outstanding task and waits for their goroutines to exit.
// It must not be called from inside a task callback.
func (s *ClockScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := len(s.tasks)
	for task := range s.tasks {
		task.Cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	log.Debug().Int("cancelled_tasks", pending).Msg("scheduler closed")
}

func (s *ClockScheduler) register() (*clockTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	task := &clockTask{stop: make(chan struct{})}
	s.tasks[task] = struct{}{}
	s.wg.Add(1)
	return task, nil
}

func (s *ClockScheduler) release(task *clockTask) {
	s.mu.Lock()
	delete(s.tasks, task)
	s.mu.Unlock()
	s.wg.Done()
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
