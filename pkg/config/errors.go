package config

import "errors"

var (
	// ErrInvalidSettings marks documents rejected by Validate.
	ErrInvalidSettings = errors.New("invalid settings")

	errInvalidDuration    = errors.New("invalid duration")
	errInvalidProbeMethod = errors.New("invalid probe_method")
	errInvalidURL         = errors.New("invalid URL")
	errNegativeValue      = errors.New("value must not be negative")
)
