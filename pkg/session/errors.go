package session

import "errors"

// Sentinel errors for session management.
// Callers should use errors.Is() to check for these.
var (
	// ErrRotationFailed indicates the rotate call did not yield a
	// replacement session cookie. A scan cannot continue past it.
	ErrRotationFailed = errors.New("session: token rotation failed")

	// ErrMissingToken indicates the manager was built without a session cookie.
	ErrMissingToken = errors.New("session: no session token")
)
