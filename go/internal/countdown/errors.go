package countdown

import "errors"

var (
	// ErrInvalidDuration is returned when a countdown is started with a non-positive number of seconds.
	ErrInvalidDuration = errors.New("countdown duration must be positive")
	// ErrSchedulerClosed is returned by a Scheduler that no longer accepts tasks.
	ErrSchedulerClosed = errors.New("scheduler closed")
	// ErrUnknownKind is returned when a kind name cannot be parsed.
	ErrUnknownKind = errors.New("unknown countdown kind")
)
