package bayeux

// Reconnect directives carried in advice.
const (
	ReconnectRetry     = "retry"
	ReconnectHandshake = "handshake"
	ReconnectNone      = "none"
)

// Advice is the server guidance block attached to handshake and connect
// responses. Interval and Timeout are milliseconds.
type Advice struct {
	Reconnect string `json:"reconnect"`
	Interval  int    `json:"interval"`
	Timeout   int    `json:"timeout"`
}

// RetryAdvice builds the baseline advice returned on every handshake and
// every successful connect.
func RetryAdvice(interval, timeout int) *Advice {
	return &Advice{Reconnect: ReconnectRetry, Interval: interval, Timeout: timeout}
}

// HandshakeAdvice builds the advice returned when a session is unknown or has
// just expired: the client must re-handshake rather than retry a connect.
func HandshakeAdvice(interval int) *Advice {
	return &Advice{Reconnect: ReconnectHandshake, Interval: interval, Timeout: 0}
}
