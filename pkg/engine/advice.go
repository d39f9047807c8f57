package engine

import (
	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
	"github.com/bayeuxd/bayeuxd/pkg/config"
)

// SessionStatus is the session-state input to the advice generator.
type SessionStatus int

// Session states as seen by the advice generator.
const (
	// StatusActive: the session is known and usable.
	StatusActive SessionStatus = iota
	// StatusUnknown: the clientId is not in the registry.
	StatusUnknown
	// StatusExpired: the session just hit its expiry threshold.
	StatusExpired
)

// ComputeAdvice computes the advice block for a response. It is a pure
// function of configuration and session state: an active session gets retry
// advice with the configured interval and timeout, an unknown or expired one
// is told to re-handshake with a zero timeout.
func ComputeAdvice(status SessionStatus, cfg *config.Config) *bayeux.Advice {
	switch status {
	case StatusUnknown, StatusExpired:
		return bayeux.HandshakeAdvice(cfg.ConnectInterval)
	default:
		return bayeux.RetryAdvice(cfg.ConnectInterval, cfg.ConnectTimeout)
	}
}
