package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/events"
)

// TimerStatus is the command-surface view of one countdown.
type TimerStatus struct {
	Kind      string `json:"kind"`
	Running   bool   `json:"running"`
	Remaining int    `json:"remaining_seconds"`
	Formatted string `json:"remaining"`
	// Started is only reported for the End countdown, whose status depends on it.
	Started *bool `json:"started,omitempty"`
}

// StartTimer starts (or restarts) the countdown of kind for seconds.
func (o *Orchestrator) StartTimer(kind countdown.Kind, seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("start %s with %d seconds: %w", kind, seconds, countdown.ErrInvalidDuration)
	}
	timer, err := o.Timer(kind)
	if err != nil {
		return err
	}
	if err := timer.Start(seconds); err != nil {
		return err
	}

	now := time.Now().UTC()
	o.events.Emit(events.TypeTimerStarted, kind.String(), events.TimerStartedPayload{
		Kind:      kind.String(),
		Seconds:   seconds,
		StartedAt: now,
		EndsAt:    now.Add(time.Duration(seconds) * countdown.TickPeriod),
	})
	return nil
}

// StopTimer cancels the countdown of kind. Unlike Timer.Stop it reports
// ErrTimerNotRunning when nothing was running.
func (o *Orchestrator) StopTimer(kind countdown.Kind) error {
	timer, err := o.Timer(kind)
	if err != nil {
		return err
	}
	remaining, wasRunning := timer.Interrupt()
	if !wasRunning {
		return fmt.Errorf("stop %s: %w", kind, ErrTimerNotRunning)
	}

	o.events.Emit(events.TypeTimerStopped, kind.String(), events.TimerStoppedPayload{
		Kind:      kind.String(),
		Remaining: remaining,
		StoppedAt: time.Now().UTC(),
		Reason:    "command",
	})
	return nil
}

// TimerStatus reports the state of the countdown of kind.
func (o *Orchestrator) TimerStatus(kind countdown.Kind) (TimerStatus, error) {
	timer, err := o.Timer(kind)
	if err != nil {
		return TimerStatus{}, err
	}
	snap := timer.Snapshot()
	status := TimerStatus{
		Kind:      kind.String(),
		Running:   snap.Running,
		Remaining: snap.Remaining,
		Formatted: countdown.FormatDuration(snap.Remaining),
	}
	if kind == countdown.KindEnd {
		started := o.phase.Started()
		status.Started = &started
	}
	return status, nil
}

// TimerStatuses reports every countdown in precedence order.
func (o *Orchestrator) TimerStatuses() []TimerStatus {
	out := make([]TimerStatus, 0, len(countdown.Kinds))
	for _, kind := range countdown.Kinds {
		status, err := o.TimerStatus(kind)
		if err != nil {
			continue
		}
		out = append(out, status)
	}
	return out
}

// Action is the verb of a text command.
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionStatus Action = "status"
)

// Command is a parsed text command such as "start beginning 60".
type Command struct {
	Action  Action
	Kind    countdown.Kind
	Seconds int
}

// ParseCommand parses "<start|stop|status> <kind> [seconds]".
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, text)
	}

	kind, err := countdown.ParseKind(fields[1])
	if err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	cmd := Command{Action: Action(strings.ToLower(fields[0])), Kind: kind}
	switch cmd.Action {
	case ActionStart:
		if len(fields) != 3 {
			return Command{}, fmt.Errorf("%w: start needs a number of seconds", ErrInvalidCommand)
		}
		seconds, err := strconv.Atoi(fields[2])
		if err != nil {
			return Command{}, fmt.Errorf("%w: seconds %q: %w", ErrInvalidCommand, fields[2], err)
		}
		if seconds <= 0 {
			return Command{}, fmt.Errorf("%w: %d", countdown.ErrInvalidDuration, seconds)
		}
		cmd.Seconds = seconds
	case ActionStop, ActionStatus:
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrInvalidCommand, cmd.Action)
		}
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, fields[0])
	}
	return cmd, nil
}

// Execute runs cmd and returns the feedback line shown to whoever issued it.
func (o *Orchestrator) Execute(cmd Command) (string, error) {
	name := kindTitle(cmd.Kind)
	switch cmd.Action {
	case ActionStart:
		if err := o.StartTimer(cmd.Kind, cmd.Seconds); err != nil {
			return "", err
		}
		log.Info().Str("kind", cmd.Kind.String()).Int("seconds", cmd.Seconds).Msg("countdown started by command")
		return fmt.Sprintf("%s countdown started: %s", name, countdown.FormatDuration(cmd.Seconds)), nil
	case ActionStop:
		if err := o.StopTimer(cmd.Kind); err != nil {
			return fmt.Sprintf("%s countdown is not running", name), err
		}
		log.Info().Str("kind", cmd.Kind.String()).Msg("countdown stopped by command")
		return fmt.Sprintf("%s countdown stopped", name), nil
	case ActionStatus:
		status, err := o.TimerStatus(cmd.Kind)
		if err != nil {
			return "", err
		}
		if !status.Running {
			return fmt.Sprintf("%s countdown is not running", name), nil
		}
		line := fmt.Sprintf("%s countdown: %s remaining", name, status.Formatted)
		if status.Started != nil && !*status.Started {
			line += " (server not started, status hidden)"
		}
		return line, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, cmd.Action)
	}
}

func kindTitle(kind countdown.Kind) string {
	switch kind {
	case countdown.KindBeginning:
		return "Beginning"
	case countdown.KindRestart:
		return "Restart"
	case countdown.KindEnd:
		return "The End"
	default:
		return kind.String()
	}
}
