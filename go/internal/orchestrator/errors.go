package orchestrator

import "errors"

var (
	// ErrTimerNotRunning is reported by StopTimer when there is nothing to stop.
	ErrTimerNotRunning = errors.New("countdown is not running")
	// ErrAlreadyRunning is returned by Start on an orchestrator that was already started.
	ErrAlreadyRunning = errors.New("orchestrator already running")
	// ErrInvalidCommand is returned for a text command that cannot be parsed.
	ErrInvalidCommand = errors.New("invalid command")
)
