package gateway

import "errors"

// ErrObserverNotFound is returned by Disconnect when no connection belongs to the identity.
var ErrObserverNotFound = errors.New("observer not connected")
