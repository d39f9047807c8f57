package bayeux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Disabled(t *testing.T) {
	v := NewValidator(false)
	// A connect with no fields at all passes a disabled validator.
	assert.NoError(t, v.Validate(&Message{Channel: MetaConnect}))
	assert.NoError(t, v.Validate(&Message{}))
}

func TestValidator_RequiredFields(t *testing.T) {
	v := NewValidator(true)

	tests := []struct {
		name      string
		msg       Message
		wantField string
	}{
		{
			name:      "channel must start with slash",
			msg:       Message{Channel: "meta/connect"},
			wantField: "channel",
		},
		{
			name:      "handshake requires version",
			msg:       Message{Channel: MetaHandshake, SupportedConnectionTypes: []string{"long-polling"}},
			wantField: "version",
		},
		{
			name:      "handshake requires supportedConnectionTypes",
			msg:       Message{Channel: MetaHandshake, Version: "1.0"},
			wantField: "supportedConnectionTypes",
		},
		{
			name:      "connect requires clientId",
			msg:       Message{Channel: MetaConnect, ConnectionType: "long-polling"},
			wantField: "clientId",
		},
		{
			name:      "connect requires connectionType",
			msg:       Message{Channel: MetaConnect, ClientID: "abc"},
			wantField: "connectionType",
		},
		{
			name:      "subscribe requires subscription",
			msg:       Message{Channel: MetaSubscribe, ClientID: "abc"},
			wantField: "subscription",
		},
		{
			name:      "unsubscribe requires clientId",
			msg:       Message{Channel: MetaUnsubscribe, Subscription: "/foo"},
			wantField: "clientId",
		},
		{
			name:      "disconnect requires clientId",
			msg:       Message{Channel: MetaDisconnect},
			wantField: "clientId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.msg)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestValidator_ValidMessages(t *testing.T) {
	v := NewValidator(true)

	valid := []Message{
		{Channel: MetaHandshake, Version: "1.0", SupportedConnectionTypes: []string{"long-polling"}},
		{Channel: MetaConnect, ClientID: "abc", ConnectionType: "long-polling"},
		{Channel: MetaSubscribe, ClientID: "abc", Subscription: "/foo"},
		{Channel: MetaUnsubscribe, ClientID: "abc", Subscription: "/foo"},
		{Channel: MetaDisconnect, ClientID: "abc"},
		{Channel: "/some/app/channel"},
	}
	for _, msg := range valid {
		assert.NoError(t, v.Validate(&msg), "channel %s", msg.Channel)
	}
}

func TestValidationError_Bayeux(t *testing.T) {
	verr := &ValidationError{Channel: MetaConnect, Field: "clientId"}
	assert.Equal(t, "400::/meta/connect::missing_clientId", verr.Bayeux())
}
