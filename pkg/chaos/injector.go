// Package chaos injects random HTTP failures into non-handshake Bayeux
// traffic so client retry and backoff behavior can be exercised. Disabled by
// default; when a fault fires the request is answered with a bare HTTP
// status instead of a Bayeux response.
package chaos

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Response is one possible chaos outcome.
type Response struct {
	Status  int
	Message string
}

// DefaultResponses is the status pool a fault is drawn from. A 200 entry is
// deliberately present: sometimes chaos looks like success.
var DefaultResponses = []Response{
	{http.StatusOK, "OK"},
	{http.StatusBadRequest, "Bad Request"},
	{http.StatusUnauthorized, "Unauthorized"},
	{http.StatusForbidden, "Forbidden"},
	{http.StatusNotFound, "Not Found"},
	{http.StatusTooManyRequests, "Too Many Requests"},
	{http.StatusInternalServerError, "Internal Server Error"},
	{http.StatusBadGateway, "Bad Gateway"},
	{http.StatusServiceUnavailable, "Service Unavailable"},
	{http.StatusGatewayTimeout, "Gateway Timeout"},
}

// Injector decides per request whether to short-circuit with a random HTTP
// status. Probability 0 disables it.
type Injector struct {
	probability float64
	responses   []Response

	mu    sync.Mutex
	rng   *rand.Rand
	fired int64
}

// NewInjector creates an injector firing with the given probability,
// clamped to [0, 1].
func NewInjector(probability float64) *Injector {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return &Injector{
		probability: probability,
		responses:   DefaultResponses,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Enabled reports whether the injector can ever fire.
func (i *Injector) Enabled() bool {
	return i != nil && i.probability > 0
}

// Pick rolls the dice. When the fault fires it returns the chosen response
// and true; otherwise the request proceeds normally.
func (i *Injector) Pick() (Response, bool) {
	if !i.Enabled() {
		return Response{}, false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.rng.Float64() >= i.probability {
		return Response{}, false
	}
	i.fired++
	return i.responses[i.rng.Intn(len(i.responses))], true
}

// Fired returns how many times a fault has fired.
func (i *Injector) Fired() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.fired
}
