package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bayeuxd/bayeuxd/internal/id"
	"github.com/bayeuxd/bayeuxd/pkg/logging"
)

// ExpiryPolicy invalidates clientIds after a connection-count threshold or a
// time-since-creation threshold. The two axes are mutually exclusive; the
// zero value disables automatic expiry.
type ExpiryPolicy struct {
	// MaxConnects expires a session once its connection count exceeds this
	// threshold: with MaxConnects = N the (N+1)th connect is the session's
	// last successful one. Zero disables the count axis.
	MaxConnects int

	// MaxAge expires a session once its age since creation reaches this
	// duration. Zero disables the time axis.
	MaxAge time.Duration
}

// Validate rejects a policy with both axes configured.
func (p ExpiryPolicy) Validate() error {
	if p.MaxConnects > 0 && p.MaxAge > 0 {
		return ErrBothExpiryAxes
	}
	return nil
}

// Registry owns all active sessions. It has an explicit lifecycle: created at
// server start, closed at shutdown. Handlers receive it by handle.
type Registry struct {
	policy   ExpiryPolicy
	onExpire func(clientID string)
	log      *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	sweepEvery time.Duration
	done       chan struct{}
	wg         sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithOnExpire registers a hook invoked (without registry locks held) after a
// session is expired, with the expired clientId. The connect scheduler uses
// this to release an outstanding hold.
func WithOnExpire(fn func(clientID string)) Option {
	return func(r *Registry) {
		r.onExpire = fn
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithSweepInterval overrides how often the time-axis sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sweepEvery = d
		}
	}
}

// NewRegistry creates a registry with the given expiry policy. A policy with
// a time axis starts a background sweeper so idle sessions expire even while
// a connect hold is outstanding.
func NewRegistry(policy ExpiryPolicy, opts ...Option) (*Registry, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		policy:   policy,
		log:      logging.Nop(),
		now:      time.Now,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if policy.MaxAge > 0 {
		r.sweepEvery = sweepInterval(policy.MaxAge, r.sweepEvery)
		r.wg.Add(1)
		go r.sweep()
	}
	return r, nil
}

func sweepInterval(maxAge, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	every := maxAge / 4
	if every > time.Second {
		every = time.Second
	}
	if every < 10*time.Millisecond {
		every = 10 * time.Millisecond
	}
	return every
}

// Create issues a fresh clientId and inserts a session in state handshaken.
// It never blocks on other sessions.
func (r *Registry) Create() *Session {
	s := newSession(id.ClientID(), r.now())
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	r.log.Debug("session created", "clientId", s.id)
	return s
}

// Lookup returns the session for clientID, or ErrUnknownClient.
func (r *Registry) Lookup(clientID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[clientID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownClient
	}
	return s, nil
}

// Touch records connect completion for clientID: updates lastSeenAt,
// increments the connection count, and applies the expiry policy before
// returning. If the policy triggers the session is removed and Touch fails
// with ErrClientExpired.
func (r *Registry) Touch(clientID string) (*Session, error) {
	s, err := r.Lookup(clientID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	s.mu.Lock()
	s.lastSeenAt = now
	s.connectionCount++
	s.state = StateConnected
	count := s.connectionCount
	age := now.Sub(s.createdAt)
	s.mu.Unlock()

	countHit := r.policy.MaxConnects > 0 && count > r.policy.MaxConnects
	ageHit := r.policy.MaxAge > 0 && age >= r.policy.MaxAge
	if countHit || ageHit {
		r.expire(s)
		return nil, ErrClientExpired
	}
	return s, nil
}

// Subscribe adds channel to the session's subscription set.
func (r *Registry) Subscribe(clientID, channel string) error {
	s, err := r.Lookup(clientID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.subscriptions[channel] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Unsubscribe removes channel from the session's subscription set. Removing
// a channel that was never subscribed succeeds: unsubscribe is idempotent.
func (r *Registry) Unsubscribe(clientID, channel string) error {
	s, err := r.Lookup(clientID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.subscriptions, channel)
	s.mu.Unlock()
	return nil
}

// ResetConnectionCount sets the session's connection count back to 1, used
// by the forced-reconnect behavior once its threshold trips.
func (r *Registry) ResetConnectionCount(clientID string) error {
	s, err := r.Lookup(clientID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.connectionCount = 1
	s.mu.Unlock()
	return nil
}

// Remove deletes the session for clientID, marking it disconnected. It is
// idempotent and reports whether the session existed.
func (r *Registry) Remove(clientID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[clientID]
	delete(r.sessions, clientID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()
	r.log.Debug("session removed", "clientId", clientID)
	return true
}

// List returns snapshots of all active sessions.
func (r *Registry) List() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Snapshot())
	}
	return infos
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close tears the registry down: the sweeper stops and all sessions are
// dropped. Clients must re-handshake after a restart.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	close(r.done)
	r.wg.Wait()
}

// expire removes s from the registry in state expired and fires the expiry
// hook with no registry locks held.
func (r *Registry) expire(s *Session) {
	r.mu.Lock()
	_, present := r.sessions[s.id]
	delete(r.sessions, s.id)
	r.mu.Unlock()

	s.mu.Lock()
	s.state = StateExpired
	s.mu.Unlock()

	if !present {
		return
	}
	r.log.Debug("session expired", "clientId", s.id)
	if r.onExpire != nil {
		r.onExpire(s.id)
	}
}

// sweep enforces the time axis in the background so a session with an
// outstanding connect hold still expires on schedule.
func (r *Registry) sweep() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			now := r.now()
			r.mu.RLock()
			var stale []*Session
			for _, s := range r.sessions {
				s.mu.Lock()
				old := now.Sub(s.createdAt) >= r.policy.MaxAge
				s.mu.Unlock()
				if old {
					stale = append(stale, s)
				}
			}
			r.mu.RUnlock()
			for _, s := range stale {
				r.expire(s)
			}
		}
	}
}
