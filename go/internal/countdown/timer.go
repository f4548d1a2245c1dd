package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TickPeriod is the fixed rate at which a running countdown is driven.
const TickPeriod = time.Second

// Notifier receives progress broadcasts. NotifyAll must not block.
type Notifier interface {
	NotifyAll(text string)
}

// Templates holds the user-facing text of a countdown. Each may contain {time}.
type Templates struct {
	Status    string
	Admission string
	Broadcast string
}

// Config wires a Timer to its policy, templates, and collaborators.
type Config struct {
	Policy    Policy
	Templates Templates
	Scheduler Scheduler
	Notifier  Notifier

	// Started reports whether the server has been opened. Only consulted when
	// Policy.StatusRequiresStarted is set.
	Started func() bool
	// OnThreshold runs outside the timer lock after a threshold broadcast.
	OnThreshold func(remaining int)
	// OnComplete is the terminal action. It runs exactly once per run, outside the timer lock.
	OnComplete func()
}

// Snapshot is a point-in-time view of a Timer.
type Snapshot struct {
	Kind      Kind
	Running   bool
	Remaining int
}

// Timer is a cancellable one-second countdown. The three lifecycle kinds share
// this type and differ only by Policy.
type Timer struct {
	policy      Policy
	templates   Templates
	scheduler   Scheduler
	notifier    Notifier
	started     func() bool
	onThreshold func(int)
	onComplete  func()

	mu         sync.Mutex
	running    bool
	remaining  int
	generation uint64
	task       Task
}

// NewTimer creates a stopped Timer.
func NewTimer(cfg Config) *Timer {
	return &Timer{
		policy:      cfg.Policy,
		templates:   cfg.Templates,
		scheduler:   cfg.Scheduler,
		notifier:    cfg.Notifier,
		started:     cfg.Started,
		onThreshold: cfg.OnThreshold,
		onComplete:  cfg.OnComplete,
	}
}

// Kind returns the countdown kind.
func (t *Timer) Kind() Kind {
	return t.policy.Kind
}

// Start begins a countdown of seconds, restarting any run already in progress.
// The first tick fires immediately and the terminal action fires after seconds ticks.
func (t *Timer) Start(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("start %s countdown with %d seconds: %w", t.policy.Kind, seconds, ErrInvalidDuration)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	restarted := t.running
	t.stopLocked()

	gen := t.generation
	task, err := t.scheduler.RunAtFixedRate(0, TickPeriod, func() { t.tick(gen) })
	if err != nil {
		return fmt.Errorf("schedule %s countdown: %w", t.policy.Kind, err)
	}
	t.task = task
	t.running = true
	t.remaining = seconds

	log.Info().
		Str("kind", t.policy.Kind.String()).
		Int("seconds", seconds).
		Bool("restarted", restarted).
		Msg("countdown started")
	return nil
}

// Stop cancels the countdown without running the terminal action. It is
// idempotent and reports whether a run was in progress.
func (t *Timer) Stop() bool {
	_, wasRunning := t.Interrupt()
	return wasRunning
}

// Interrupt stops the countdown and returns the seconds that were left, read
// atomically with the stop so no tick can slip in between.
func (t *Timer) Interrupt() (remaining int, wasRunning bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasRunning = t.running
	remaining = t.remaining
	t.stopLocked()

	if wasRunning {
		log.Info().
			Str("kind", t.policy.Kind.String()).
			Int("remaining", remaining).
			Msg("countdown stopped")
	}
	return remaining, wasRunning
}

// stopLocked cancels the driver and moves to a fresh generation so that a tick
// already in flight for the previous run is ignored.
func (t *Timer) stopLocked() {
	if t.task != nil {
		t.task.Cancel()
		t.task = nil
	}
	t.generation++
	t.running = false
	t.remaining = 0
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || !t.running {
		t.mu.Unlock()
		return
	}

	if t.remaining <= 0 {
		if t.task != nil {
			t.task.Cancel()
			t.task = nil
		}
		t.generation++
		t.running = false
		t.remaining = 0
		t.mu.Unlock()

		log.Info().Str("kind", t.policy.Kind.String()).Msg("countdown completed")
		if t.onComplete != nil {
			t.onComplete()
		}
		return
	}

	remaining := t.remaining
	broadcast := t.policy.ShouldBroadcast(remaining)
	if broadcast && t.notifier != nil {
		t.notifier.NotifyAll(Render(t.templates.Broadcast, remaining))
	}
	t.remaining--
	t.mu.Unlock()

	if broadcast {
		log.Debug().
			Str("kind", t.policy.Kind.String()).
			Int("remaining", remaining).
			Msg("countdown threshold broadcast")
		if t.onThreshold != nil {
			t.onThreshold(remaining)
		}
	}
}

// IsRunning reports whether a countdown is in progress.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// RemainingSeconds returns the seconds left; zero when stopped.
func (t *Timer) RemainingSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Snapshot returns the running flag and remaining seconds read together.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Kind: t.policy.Kind, Running: t.running, Remaining: t.remaining}
}

// StatusOverride returns the rendered status text while the countdown runs.
func (t *Timer) StatusOverride() (string, bool) {
	snap := t.Snapshot()
	if !snap.Running {
		return "", false
	}
	if t.policy.StatusRequiresStarted && (t.started == nil || !t.started()) {
		return "", false
	}
	return Render(t.templates.Status, snap.Remaining), true
}

// AdmissionMessage returns the rendered rejection text while the countdown
// runs, for kinds that control admission.
func (t *Timer) AdmissionMessage() (string, bool) {
	if !t.policy.AdmissionControl {
		return "", false
	}
	snap := t.Snapshot()
	if !snap.Running {
		return "", false
	}
	return Render(t.templates.Admission, snap.Remaining), true
}
