package chaos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInjector_Disabled(t *testing.T) {
	i := NewInjector(0)
	assert.False(t, i.Enabled())
	for n := 0; n < 100; n++ {
		_, fired := i.Pick()
		assert.False(t, fired)
	}
	var nilInjector *Injector
	assert.False(t, nilInjector.Enabled())
}

func TestInjector_AlwaysFires(t *testing.T) {
	i := NewInjector(1)
	for n := 0; n < 100; n++ {
		resp, fired := i.Pick()
		assert.True(t, fired)
		assert.Contains(t, DefaultResponses, resp)
	}
	assert.Equal(t, int64(100), i.Fired())
}

func TestInjector_ClampsProbability(t *testing.T) {
	assert.False(t, NewInjector(-1).Enabled())
	_, fired := NewInjector(5).Pick()
	assert.True(t, fired)
}
