// Package requestlog captures processed Bayeux messages for inspection over
// the control API. It is distinct from operational logging: entries describe
// protocol traffic, not server internals.
//
// This is a leaf package so any handler can record entries without import
// cycles.
package requestlog

import (
	"sync"
	"time"
)

// Entry records one processed Bayeux message and its outcome.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`
	// Timestamp is when the message was processed.
	Timestamp time.Time `json:"timestamp"`
	// Transport is the transport the message arrived on (http, websocket).
	Transport string `json:"transport"`
	// Channel is the Bayeux channel of the inbound message.
	Channel string `json:"channel"`
	// ClientID is the clientId carried by the message, if any.
	ClientID string `json:"clientId,omitempty"`
	// MessageID is the correlation id echoed back to the client.
	MessageID string `json:"messageId,omitempty"`
	// Successful reports the outcome of the response.
	Successful bool `json:"successful"`
	// Error is the Bayeux error string on an unsuccessful response.
	Error string `json:"error,omitempty"`
	// Elapsed is how long the message took to process; for a held connect
	// this spans the whole hold.
	Elapsed time.Duration `json:"elapsed"`
}

// Store is a bounded in-memory request history. The oldest entries are
// dropped once capacity is reached.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewStore creates a store keeping at most max entries. A non-positive max
// falls back to 1000.
func NewStore(max int) *Store {
	if max <= 0 {
		max = 1000
	}
	return &Store{max: max}
}

// Log appends an entry, evicting the oldest if the store is full.
func (s *Store) Log(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.max {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, e)
}

// List returns entries newest first, at most limit (0 = all).
func (s *Store) List(limit int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.entries[n-1-i]
	}
	return out
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
