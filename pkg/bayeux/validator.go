package bayeux

import "fmt"

// ValidationError describes a message that failed field validation. It names
// the offending channel and field so the handler can surface a protocol-level
// error response.
type ValidationError struct {
	Channel string
	Field   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("channel %q: missing or malformed field %q", e.Channel, e.Field)
}

// Bayeux formats the error in the wire error-string convention.
func (e *ValidationError) Bayeux() string {
	return ErrMalformed(e.Channel, e.Field)
}

// Validator checks parsed messages against the required-field rules for their
// channel. It is stateless; a disabled validator accepts everything.
type Validator struct {
	Enabled bool
}

// NewValidator returns a validator. Pass enabled=false to accept all
// messages without inspection.
func NewValidator(enabled bool) *Validator {
	return &Validator{Enabled: enabled}
}

// Validate checks msg against the rules for its channel. It returns nil for a
// valid message and a *ValidationError otherwise. Side-effect free.
func (v *Validator) Validate(msg *Message) error {
	if !v.Enabled {
		return nil
	}

	if !IsValidChannel(msg.Channel) {
		return &ValidationError{Channel: msg.Channel, Field: "channel"}
	}

	switch msg.Channel {
	case MetaHandshake:
		if msg.Version == "" {
			return &ValidationError{Channel: msg.Channel, Field: "version"}
		}
		if len(msg.SupportedConnectionTypes) == 0 {
			return &ValidationError{Channel: msg.Channel, Field: "supportedConnectionTypes"}
		}
	case MetaConnect:
		if msg.ClientID == "" {
			return &ValidationError{Channel: msg.Channel, Field: "clientId"}
		}
		if msg.ConnectionType == "" {
			return &ValidationError{Channel: msg.Channel, Field: "connectionType"}
		}
	case MetaSubscribe, MetaUnsubscribe:
		if msg.ClientID == "" {
			return &ValidationError{Channel: msg.Channel, Field: "clientId"}
		}
		if msg.Subscription == "" {
			return &ValidationError{Channel: msg.Channel, Field: "subscription"}
		}
	case MetaDisconnect:
		if msg.ClientID == "" {
			return &ValidationError{Channel: msg.Channel, Field: "clientId"}
		}
	}
	return nil
}
