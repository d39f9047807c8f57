package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("requests_total", "Total requests.")
	g := r.NewGauge("active_sessions", "Active sessions.")

	c.Inc()
	c.Add(2)
	g.Inc()
	g.Inc()
	g.Dec()

	assert.Equal(t, int64(3), c.Value())
	assert.Equal(t, int64(1), g.Value())
}

func TestLabeledCounter(t *testing.T) {
	r := NewRegistry()
	c := r.NewLabeledCounter("messages_total", "Messages by channel.", "channel")
	c.Inc("/meta/connect")
	c.Inc("/meta/connect")
	c.Inc("/meta/handshake")

	assert.Equal(t, int64(2), c.Value("/meta/connect"))
	assert.Equal(t, int64(1), c.Value("/meta/handshake"))
	assert.Equal(t, int64(0), c.Value("/meta/disconnect"))
}

func TestRegistry_Write(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("requests_total", "Total requests.")
	c.Add(5)
	lc := r.NewLabeledCounter("messages_total", "Messages by channel.", "channel")
	lc.Inc("/meta/handshake")

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "# TYPE requests_total counter")
	assert.Contains(t, out, "requests_total 5")
	assert.Contains(t, out, `messages_total{channel="/meta/handshake"} 1`)
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("x", "")
	err := r.register(&Counter{name: "x"})
	assert.ErrorIs(t, err, ErrDuplicateMetric)
}
