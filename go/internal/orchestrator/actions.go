package orchestrator

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/events"
)

// completeBeginning opens the server.
func (o *Orchestrator) completeBeginning() {
	ctx, cancel := o.persistContext()
	defer cancel()

	if o.cfg.DisableWhitelistOnBeginningEnd && o.whitelist != nil {
		o.whitelist.SetRestricted(false)
	}
	if err := o.phase.SetStarted(ctx, true); err != nil {
		log.Error().Err(err).Msg("failed to persist server start")
	}
	o.sink.NotifyAll(o.cfg.ServerOpenMessage)

	log.Info().Msg("server is now open")
	o.emitCompleted(countdown.KindBeginning)
	o.events.Emit(events.TypePhaseChanged, "", events.PhaseChangedPayload{
		Started:   true,
		ChangedAt: time.Now().UTC(),
		Cause:     countdown.KindBeginning.String(),
	})
}

// completeRestart kicks everyone, closes the server, and stops the process
// after a short grace period.
func (o *Orchestrator) completeRestart() {
	ctx, cancel := o.persistContext()
	defer cancel()

	if o.cfg.KickAllOnRestartEnd {
		kicked := 0
		for _, identity := range o.sink.Observers() {
			if err := o.sink.Disconnect(identity, o.cfg.FinalKickMessage); err != nil {
				log.Warn().Err(err).Str("identity", identity).Msg("failed to disconnect observer")
				continue
			}
			kicked++
		}
		log.Info().Int("kicked", kicked).Msg("disconnected observers for restart")
	}
	if err := o.phase.SetStarted(ctx, false); err != nil {
		log.Error().Err(err).Msg("failed to persist server stop")
	}
	o.sink.NotifyAll(o.cfg.RestartMessage)

	o.emitCompleted(countdown.KindRestart)
	o.events.Emit(events.TypePhaseChanged, "", events.PhaseChangedPayload{
		Started:   false,
		ChangedAt: time.Now().UTC(),
		Cause:     countdown.KindRestart.String(),
	})

	const reason = "restart countdown completed"
	task, err := o.scheduler.RunLater(o.cfg.ShutdownGrace, func() { o.shutdown(reason) })
	if err != nil {
		log.Error().Err(err).Msg("failed to schedule shutdown, shutting down now")
		o.shutdown(reason)
		return
	}

	o.mu.Lock()
	o.shutdownTask = task
	o.mu.Unlock()

	log.Info().Dur("grace", o.cfg.ShutdownGrace).Msg("shutdown scheduled")
}

// completeEnd opens The End.
func (o *Orchestrator) completeEnd() {
	o.sink.NotifyAll(o.cfg.EndOpenMessage)
	log.Info().Msg("the end is now open")
	o.emitCompleted(countdown.KindEnd)
}

func (o *Orchestrator) emitCompleted(kind countdown.Kind) {
	o.events.Emit(events.TypeTimerCompleted, kind.String(), events.TimerCompletedPayload{
		Kind:        kind.String(),
		CompletedAt: time.Now().UTC(),
	})
}
