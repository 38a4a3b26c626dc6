package api

import "errors"

var (
	errInvalidLimit = errors.New("limit must be a non-negative integer")
	errInvalidBody  = errors.New("invalid request body")

	// ErrLogSourceClosed is returned by Run when the log subscription ends
	// while the server is still wanted.
	ErrLogSourceClosed = errors.New("log source closed")
)
