// Package connect implements the long-poll hold/release machinery for
// /meta/connect. Each valid connect registers a hold: a suspension point
// keyed by clientId that resolves exactly once, by timeout, by an injected
// delivery, by session expiry, or by caller cancellation. The configured
// timeout is a hard upper bound on any hold's lifetime, so no request is
// ever left suspended indefinitely.
package connect

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
	"github.com/bayeuxd/bayeuxd/pkg/logging"
)

// Scheduler tracks at most one outstanding hold per clientId. A session's
// connect cycle is IDLE while no hold exists, HOLDING while one does.
type Scheduler struct {
	timeout time.Duration
	log     *slog.Logger

	mu    sync.Mutex
	holds map[string]*Hold
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler creates a scheduler that holds connects open for up to
// timeout before releasing them empty.
func NewScheduler(timeout time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		timeout: timeout,
		log:     logging.Nop(),
		holds:   make(map[string]*Hold),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register opens a hold for clientID. It fails with ErrConcurrentConnect if
// a hold is already outstanding; the existing hold is unaffected.
func (s *Scheduler) Register(clientID string) (*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holds[clientID]; ok {
		return nil, ErrConcurrentConnect
	}
	h := &Hold{
		clientID: clientID,
		timeout:  s.timeout,
		sched:    s,
		resolved: make(chan Resolution, 1),
	}
	s.holds[clientID] = h
	s.log.Debug("connect held", "clientId", clientID, "timeout", s.timeout)
	return h, nil
}

// Deliver resolves the outstanding hold for clientID with msgs, releasing
// the long poll early. It reports whether a hold was waiting; when none is,
// the messages are dropped (the mock keeps no per-client queue).
func (s *Scheduler) Deliver(clientID string, msgs []bayeux.Message) bool {
	s.mu.Lock()
	h, ok := s.holds[clientID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.resolve(Resolution{Reason: ReasonDelivered, Messages: msgs})
	return true
}

// Expire resolves the outstanding hold for clientID because its session
// expired. The waiting connect responds with re-handshake advice. It reports
// whether a hold was waiting.
func (s *Scheduler) Expire(clientID string) bool {
	s.mu.Lock()
	h, ok := s.holds[clientID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.resolve(Resolution{Reason: ReasonExpired})
	return true
}

// Holding reports whether a hold is outstanding for clientID.
func (s *Scheduler) Holding(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.holds[clientID]
	return ok
}

// Len returns the number of outstanding holds.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holds)
}

// release drops h from the hold table if it is still the registered hold for
// its clientId, returning the session's connect cycle to IDLE.
func (s *Scheduler) release(h *Hold) {
	s.mu.Lock()
	if s.holds[h.clientID] == h {
		delete(s.holds, h.clientID)
	}
	s.mu.Unlock()
}
