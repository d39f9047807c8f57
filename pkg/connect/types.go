package connect

import (
	"errors"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
)

// Common errors for the connect package.
var (
	// ErrConcurrentConnect indicates a connect arrived while another hold
	// for the same clientId was still outstanding.
	ErrConcurrentConnect = errors.New("connect already outstanding for clientId")
	// ErrSchedulerClosed indicates the scheduler has been shut down.
	ErrSchedulerClosed = errors.New("scheduler closed")
	// ErrTooSoon is reserved for server-side enforcement of the advisory
	// connect interval. The scheduler never returns it today.
	ErrTooSoon = errors.New("connect arrived before the advised interval elapsed")
)

// Reason says what released a hold.
type Reason int

// Hold release reasons.
const (
	// ReasonTimeout: the deadline elapsed with nothing to deliver, the
	// normal long-poll idle return.
	ReasonTimeout Reason = iota
	// ReasonDelivered: an event was injected for the client.
	ReasonDelivered
	// ReasonExpired: the session expired while the hold was outstanding.
	ReasonExpired
	// ReasonCancelled: the caller's context was cancelled (client gone).
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonDelivered:
		return "delivered"
	case ReasonExpired:
		return "expired"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of a hold.
type Resolution struct {
	Reason   Reason
	Messages []bayeux.Message
}
