// Package session owns the set of active client sessions: clientId issuance,
// lookup, per-session connection counters, subscription bookkeeping, and the
// expiry policy that invalidates idle or overused clientIds.
package session

import (
	"sort"
	"sync"
	"time"
)

// State is a session lifecycle state.
type State string

// Session states. Disconnected and Expired are terminal.
const (
	StateHandshaken   State = "handshaken"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateExpired      State = "expired"
)

// Session is one client's server-side state. All mutable fields are guarded
// by the session's own mutex so unrelated sessions never contend.
type Session struct {
	id string

	mu              sync.Mutex
	state           State
	createdAt       time.Time
	lastSeenAt      time.Time
	connectionCount int
	subscriptions   map[string]struct{}
}

// Info is an immutable snapshot of a session, safe to hand to the control
// API and logs.
type Info struct {
	ClientID        string    `json:"clientId"`
	State           State     `json:"state"`
	CreatedAt       time.Time `json:"createdAt"`
	LastSeenAt      time.Time `json:"lastSeenAt"`
	ConnectionCount int       `json:"connectionCount"`
	Subscriptions   []string  `json:"subscriptions"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:            id,
		state:         StateHandshaken,
		createdAt:     now,
		lastSeenAt:    now,
		subscriptions: make(map[string]struct{}),
	}
}

// ID returns the session's clientId.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConnectionCount returns the number of completed connects.
func (s *Session) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionCount
}

// CreatedAt returns when the session was handshaken.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// Subscribed reports whether the session is subscribed to channel.
func (s *Session) Subscribed(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscriptions[channel]
	return ok
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]string, 0, len(s.subscriptions))
	for ch := range s.subscriptions {
		subs = append(subs, ch)
	}
	sort.Strings(subs)
	return Info{
		ClientID:        s.id,
		State:           s.state,
		CreatedAt:       s.createdAt,
		LastSeenAt:      s.lastSeenAt,
		ConnectionCount: s.connectionCount,
		Subscriptions:   subs,
	}
}
