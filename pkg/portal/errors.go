package portal

import "errors"

var (
	// ErrEmptyCredentials is returned by Login before any network call when
	// the identity or secret is missing.
	ErrEmptyCredentials = errors.New("credentials empty")
	// ErrNoSessionToken means no userIndex could be obtained for logout.
	ErrNoSessionToken    = errors.New("no session token available")
	ErrMalformedResponse = errors.New("malformed portal response")
	errUnexpectedStatus  = errors.New("unexpected HTTP status")
	errEmptyDocument     = errors.New("empty document")
)
