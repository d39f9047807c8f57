package session

import "errors"

// Common errors for the session package.
var (
	// ErrUnknownClient indicates a lookup for a clientId the registry does
	// not hold. Unknown ids are never treated as fresh sessions.
	ErrUnknownClient = errors.New("unknown clientId")
	// ErrClientExpired indicates the expiry policy removed the session.
	ErrClientExpired = errors.New("clientId expired")
	// ErrRegistryClosed indicates the registry has been torn down.
	ErrRegistryClosed = errors.New("registry closed")
	// ErrBothExpiryAxes indicates both the count and the time form of the
	// expiry policy were configured; at most one may be active.
	ErrBothExpiryAxes = errors.New("connection-count and time expiry thresholds are mutually exclusive")
)
