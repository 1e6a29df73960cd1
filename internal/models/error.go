package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account security errors
	ErrAccountLocked     = errors.New("account is locked")
	ErrAccountDisabled   = errors.New("account is disabled")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrSessionAdmission is returned when session storage fails during
	// login. A session is the proof of a successful authentication, so this
	// is fatal to the whole attempt.
	ErrSessionAdmission = errors.New("session admission failed")

	// ErrCounterStoreUnavailable signals a counter store failure. The rate
	// limiter swallows it (fail-open) and only logs; it never reaches a caller.
	ErrCounterStoreUnavailable = errors.New("counter store unavailable")
)
