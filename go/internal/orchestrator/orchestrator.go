// Package orchestrator owns the three lifecycle countdowns: it runs their
// terminal actions, persists and resumes interrupted runs, and answers the
// status and admission hooks.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/events"
	"github.com/mcdev12/timing/go/internal/phase"
	"github.com/mcdev12/timing/go/internal/resolver"
)

// Sink is the set of connected observers. NotifyAll is fire-and-forget.
type Sink interface {
	NotifyAll(text string)
	Observers() []string
	Disconnect(identity, text string) error
}

// Whitelist is the restricted-connections toggle.
type Whitelist interface {
	SetRestricted(restricted bool)
}

// Emitter queues lifecycle events without blocking.
type Emitter interface {
	Emit(typ events.Type, kind string, payload any)
}

// Deps are the collaborators of an Orchestrator. Scheduler and Phase are required.
type Deps struct {
	Scheduler  countdown.Scheduler
	Phase      *phase.State
	Sink       Sink
	Whitelist  Whitelist
	Privileges resolver.Privileges
	Events     Emitter
	// Shutdown stops the process. It must not block.
	Shutdown func(reason string)
}

type Orchestrator struct {
	cfg        Config
	scheduler  countdown.Scheduler
	phase      *phase.State
	sink       Sink
	whitelist  Whitelist
	privileges resolver.Privileges
	events     Emitter
	shutdown   func(reason string)

	timers map[countdown.Kind]*countdown.Timer

	mu           sync.Mutex
	running      bool
	resumeTask   countdown.Task
	shutdownTask countdown.Task
}

// New creates an Orchestrator with all three countdowns stopped.
func New(cfg Config, deps Deps) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg.withDefaults(),
		scheduler:  deps.Scheduler,
		phase:      deps.Phase,
		sink:       deps.Sink,
		whitelist:  deps.Whitelist,
		privileges: deps.Privileges,
		events:     deps.Events,
		shutdown:   deps.Shutdown,
	}
	if o.sink == nil {
		o.sink = discardSink{}
	}
	if o.events == nil {
		o.events = discardEmitter{}
	}
	if o.shutdown == nil {
		o.shutdown = func(reason string) {
			log.Warn().Str("reason", reason).Msg("shutdown requested but no handler configured")
		}
	}

	terminal := map[countdown.Kind]func(){
		countdown.KindBeginning: o.completeBeginning,
		countdown.KindRestart:   o.completeRestart,
		countdown.KindEnd:       o.completeEnd,
	}

	o.timers = make(map[countdown.Kind]*countdown.Timer, len(countdown.Kinds))
	for _, kind := range countdown.Kinds {
		templates := o.cfg.Templates[kind]
		o.timers[kind] = countdown.NewTimer(countdown.Config{
			Policy:    countdown.PolicyFor(kind),
			Templates: templates,
			Scheduler: o.scheduler,
			Notifier:  o.sink,
			Started:   o.phase.Started,
			OnThreshold: func(remaining int) {
				o.events.Emit(events.TypeTimerThreshold, kind.String(), events.TimerThresholdPayload{
					Kind:      kind.String(),
					Remaining: remaining,
					Text:      countdown.Render(templates.Broadcast, remaining),
				})
			},
			OnComplete: terminal[kind],
		})
	}
	return o
}

// Start loads the persisted phase and schedules resumption of any countdown
// that was interrupted by the previous shutdown.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.running = true
	o.mu.Unlock()

	if err := o.phase.Load(ctx); err != nil {
		log.Error().Err(err).Msg("failed to load phase state, starting from defaults")
	}

	// The whitelist is seeded from config on every boot; an opened server stays open.
	if o.phase.Started() && o.cfg.DisableWhitelistOnBeginningEnd && o.whitelist != nil {
		o.whitelist.SetRestricted(false)
	}

	o.scheduleResume()

	log.Info().Bool("started", o.phase.Started()).Msg("orchestrator started")
	return nil
}

func (o *Orchestrator) scheduleResume() {
	if o.phase.Saved(countdown.KindBeginning) <= 0 && o.phase.Saved(countdown.KindEnd) <= 0 {
		return
	}

	task, err := o.scheduler.RunLater(o.cfg.ResumeDelay, o.resumeSaved)
	if err != nil {
		log.Error().Err(err).Msg("failed to schedule countdown resume")
		return
	}

	o.mu.Lock()
	o.resumeTask = task
	o.mu.Unlock()

	log.Info().Dur("delay", o.cfg.ResumeDelay).Msg("scheduled countdown resume")
}

func (o *Orchestrator) resumeSaved() {
	ctx, cancel := o.persistContext()
	defer cancel()

	o.mu.Lock()
	o.resumeTask = nil
	o.mu.Unlock()

	for _, kind := range []countdown.Kind{countdown.KindBeginning, countdown.KindEnd} {
		remaining, err := o.phase.TakeSaved(ctx, kind)
		if err != nil {
			log.Error().Err(err).Str("kind", kind.String()).Msg("failed to clear saved countdown")
		}
		if remaining <= 0 {
			continue
		}

		if err := o.timers[kind].Start(remaining); err != nil {
			log.Error().Err(err).Str("kind", kind.String()).Int("remaining", remaining).Msg("failed to resume countdown")
			if err := o.phase.SetSaved(kind, remaining); err != nil {
				log.Error().Err(err).Str("kind", kind.String()).Msg("failed to restore saved countdown")
			}
			continue
		}

		log.Info().Str("kind", kind.String()).Int("remaining", remaining).Msg("resumed countdown")
		o.events.Emit(events.TypeTimerResumed, kind.String(), events.TimerResumedPayload{
			Kind:      kind.String(),
			Remaining: remaining,
			ResumedAt: time.Now().UTC(),
		})
	}
}

// Close stops every countdown. Running Beginning and End countdowns have their
// remaining seconds saved so the next Start resumes them; Restart is dropped.
// The phase record is always written.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	if o.resumeTask != nil {
		o.resumeTask.Cancel()
		o.resumeTask = nil
	}
	if o.shutdownTask != nil {
		o.shutdownTask.Cancel()
		o.shutdownTask = nil
	}
	o.mu.Unlock()

	for _, kind := range []countdown.Kind{countdown.KindBeginning, countdown.KindEnd} {
		remaining, wasRunning := o.timers[kind].Interrupt()
		if !wasRunning {
			continue
		}
		// A run at zero is waiting on its terminal tick; keep it so the next start completes it.
		remaining = max(remaining, 1)
		if err := o.phase.SetSaved(kind, remaining); err != nil {
			log.Error().Err(err).Str("kind", kind.String()).Msg("failed to save countdown")
		}
	}
	o.timers[countdown.KindRestart].Stop()

	if err := o.phase.Flush(ctx); err != nil {
		log.Error().Err(err).Msg("failed to persist phase state")
		return fmt.Errorf("close orchestrator: %w", err)
	}

	log.Info().Msg("orchestrator stopped")
	return nil
}

// Timer returns the countdown of kind.
func (o *Orchestrator) Timer(kind countdown.Kind) (*countdown.Timer, error) {
	timer, ok := o.timers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", countdown.ErrUnknownKind, kind)
	}
	return timer, nil
}

// Started reports whether the server has been opened.
func (o *Orchestrator) Started() bool {
	return o.phase.Started()
}

func (o *Orchestrator) persistContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.cfg.PersistTimeout)
}

type discardSink struct{}

func (discardSink) NotifyAll(string)                {}
func (discardSink) Observers() []string             { return nil }
func (discardSink) Disconnect(string, string) error { return nil }

type discardEmitter struct{}

func (discardEmitter) Emit(events.Type, string, any) {}
