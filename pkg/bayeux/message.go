// Package bayeux defines the parsed Bayeux wire model: messages, meta
// channels, advice, and the protocol error string format used by CometD
// servers ("<code>::<args>::<tag>").
//
// The package is a leaf: it carries no server state and performs no I/O.
// Transports decode request bodies into []Message and encode []Message
// responses back out.
package bayeux

// ProtocolVersion is the Bayeux protocol version advertised on handshake.
const ProtocolVersion = "1.0"

// Connection types negotiated during handshake.
const (
	ConnectionTypeLongPolling = "long-polling"
	ConnectionTypeWebSocket   = "websocket"
)

// Message is a single parsed Bayeux message. The same shape is used for
// requests and responses; optional fields are omitted when empty.
type Message struct {
	Channel                  string         `json:"channel"`
	ID                       string         `json:"id,omitempty"`
	ClientID                 string         `json:"clientId,omitempty"`
	Successful               *bool          `json:"successful,omitempty"`
	Version                  string         `json:"version,omitempty"`
	MinimumVersion           string         `json:"minimumVersion,omitempty"`
	SupportedConnectionTypes []string       `json:"supportedConnectionTypes,omitempty"`
	ConnectionType           string         `json:"connectionType,omitempty"`
	Subscription             string         `json:"subscription,omitempty"`
	Advice                   *Advice        `json:"advice,omitempty"`
	Error                    string         `json:"error,omitempty"`
	Data                     any            `json:"data,omitempty"`
	Ext                      map[string]any `json:"ext,omitempty"`
}

// Bool returns a pointer to b, for the optional successful field.
func Bool(b bool) *bool {
	return &b
}

// IsSuccessful reports whether the message carries successful: true.
func (m *Message) IsSuccessful() bool {
	return m.Successful != nil && *m.Successful
}
