package phase

import "errors"

// ErrUnknownSlot is returned for a countdown kind whose remaining time is never persisted.
var ErrUnknownSlot = errors.New("countdown kind has no saved slot")
