package bayeux

import "strings"

// Meta channels carrying session-management messages.
const (
	MetaHandshake   = "/meta/handshake"
	MetaConnect     = "/meta/connect"
	MetaDisconnect  = "/meta/disconnect"
	MetaSubscribe   = "/meta/subscribe"
	MetaUnsubscribe = "/meta/unsubscribe"
)

// IsMetaChannel reports whether ch is a /meta/ channel.
func IsMetaChannel(ch string) bool {
	return strings.HasPrefix(ch, "/meta/")
}

// IsValidChannel reports whether ch has a valid channel shape: non-empty and
// beginning with a slash.
func IsValidChannel(ch string) bool {
	return strings.HasPrefix(ch, "/")
}
