package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, policy ExpiryPolicy, opts ...Option) *Registry {
	t.Helper()
	r, err := NewRegistry(policy, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_CreateIssuesDistinctIDs(t *testing.T) {
	r := newTestRegistry(t, ExpiryPolicy{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := r.Create()
		assert.False(t, seen[s.ID()])
		seen[s.ID()] = true
		assert.Equal(t, StateHandshaken, s.State())
	}
	assert.Equal(t, 100, r.Count())
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := newTestRegistry(t, ExpiryPolicy{})
	_, err := r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestRegistry_TouchIncrementsAndConnects(t *testing.T) {
	r := newTestRegistry(t, ExpiryPolicy{})
	s := r.Create()

	got, err := r.Touch(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.ConnectionCount())
	assert.Equal(t, StateConnected, got.State())

	_, err = r.Touch(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, s.ConnectionCount())
}

func TestRegistry_CountExpiry(t *testing.T) {
	// With MaxConnects = 2, the third touch is the one that trips the
	// policy; afterwards the session is gone.
	r := newTestRegistry(t, ExpiryPolicy{MaxConnects: 2})
	s := r.Create()

	_, err := r.Touch(s.ID())
	require.NoError(t, err)
	_, err = r.Touch(s.ID())
	require.NoError(t, err)

	_, err = r.Touch(s.ID())
	assert.ErrorIs(t, err, ErrClientExpired)
	assert.Equal(t, StateExpired, s.State())

	_, err = r.Lookup(s.ID())
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestRegistry_TimeExpiryOnTouch(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	r := newTestRegistry(t, ExpiryPolicy{MaxAge: time.Minute}, WithClock(clock), WithSweepInterval(time.Hour))
	s := r.Create()

	_, err := r.Touch(s.ID())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = r.Touch(s.ID())
	assert.ErrorIs(t, err, ErrClientExpired)
	_, err = r.Lookup(s.ID())
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestRegistry_SweeperExpiresIdleSessions(t *testing.T) {
	var mu sync.Mutex
	var expired []string
	hook := func(clientID string) {
		mu.Lock()
		expired = append(expired, clientID)
		mu.Unlock()
	}

	r := newTestRegistry(t, ExpiryPolicy{MaxAge: 20 * time.Millisecond},
		WithSweepInterval(5*time.Millisecond), WithOnExpire(hook))
	s := r.Create()

	assert.Eventually(t, func() bool {
		_, err := r.Lookup(s.ID())
		return err != nil
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, expired, s.ID())
}

func TestRegistry_SubscribeUnsubscribe(t *testing.T) {
	r := newTestRegistry(t, ExpiryPolicy{})
	s := r.Create()

	require.NoError(t, r.Subscribe(s.ID(), "/foo"))
	assert.True(t, s.Subscribed("/foo"))

	// Unsubscribing a channel that was never subscribed succeeds.
	require.NoError(t, r.Unsubscribe(s.ID(), "/bar"))

	require.NoError(t, r.Unsubscribe(s.ID(), "/foo"))
	assert.False(t, s.Subscribed("/foo"))

	assert.ErrorIs(t, r.Subscribe("ghost", "/foo"), ErrUnknownClient)
	assert.ErrorIs(t, r.Unsubscribe("ghost", "/foo"), ErrUnknownClient)
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := newTestRegistry(t, ExpiryPolicy{})
	s := r.Create()

	assert.True(t, r.Remove(s.ID()))
	assert.Equal(t, StateDisconnected, s.State())
	assert.False(t, r.Remove(s.ID()))
	assert.Equal(t, 0, r.Count())
}

func TestExpiryPolicy_Validate(t *testing.T) {
	assert.NoError(t, ExpiryPolicy{}.Validate())
	assert.NoError(t, ExpiryPolicy{MaxConnects: 5}.Validate())
	assert.NoError(t, ExpiryPolicy{MaxAge: time.Minute}.Validate())
	assert.ErrorIs(t, ExpiryPolicy{MaxConnects: 5, MaxAge: time.Minute}.Validate(), ErrBothExpiryAxes)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry(t, ExpiryPolicy{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := r.Create()
			for j := 0; j < 50; j++ {
				_, err := r.Touch(s.ID())
				assert.NoError(t, err)
				assert.NoError(t, r.Subscribe(s.ID(), "/chan"))
				assert.NoError(t, r.Unsubscribe(s.ID(), "/chan"))
			}
			r.Remove(s.ID())
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count())
}

func TestSession_Snapshot(t *testing.T) {
	r := newTestRegistry(t, ExpiryPolicy{})
	s := r.Create()
	require.NoError(t, r.Subscribe(s.ID(), "/b"))
	require.NoError(t, r.Subscribe(s.ID(), "/a"))

	info := s.Snapshot()
	assert.Equal(t, s.ID(), info.ClientID)
	assert.Equal(t, []string{"/a", "/b"}, info.Subscriptions)
}
