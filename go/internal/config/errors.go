package config

import "errors"

var (
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrMissingStorePath   = errors.New("store path is required")
	ErrInvalidLogLevel    = errors.New("invalid log level")
)
