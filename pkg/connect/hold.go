package connect

import (
	"context"
	"sync"
	"time"
)

// Hold is a single suspension point for one clientId's connect request. It
// resolves exactly once; racing resolvers (timeout vs. delivery vs. expiry)
// are serialized by a sync.Once and the first wins.
type Hold struct {
	clientID string
	timeout  time.Duration
	sched    *Scheduler

	once     sync.Once
	resolved chan Resolution
}

// ClientID returns the clientId the hold belongs to.
func (h *Hold) ClientID() string {
	return h.clientID
}

// resolve records the hold's outcome. The channel is buffered so the first
// resolver never blocks even when nobody is awaiting yet.
func (h *Hold) resolve(res Resolution) {
	h.once.Do(func() {
		h.resolved <- res
	})
}

// Await blocks until the hold resolves and returns the outcome. The hold is
// deregistered before Await returns, so the clientId can connect again
// immediately afterwards. Await returns within the hold timeout unless the
// hold resolved earlier.
func (h *Hold) Await(ctx context.Context) Resolution {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	defer h.sched.release(h)

	select {
	case res := <-h.resolved:
		return res
	case <-timer.C:
		h.resolve(Resolution{Reason: ReasonTimeout})
	case <-ctx.Done():
		h.resolve(Resolution{Reason: ReasonCancelled})
	}
	// A racing Deliver or Expire may have beaten the local resolution to
	// the Once; whichever won is what the caller sees.
	return <-h.resolved
}

// Cancel resolves the hold as cancelled without waiting, used when the
// transport drops before Await can run.
func (h *Hold) Cancel() {
	h.resolve(Resolution{Reason: ReasonCancelled})
	h.sched.release(h)
}
