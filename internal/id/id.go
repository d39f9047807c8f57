// Package id provides identifier generation for the bayeuxd server.
//
// Client identifiers are UUID v4 strings: clientIds are opaque to clients and
// must be collision-free for the lifetime of the process.
package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// ClientID generates a fresh Bayeux clientId.
func ClientID() string {
	return uuid.NewString()
}

// Short generates a short random hex ID (16 characters), used for log entry
// and correlation identifiers where brevity matters.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
