// Package engine provides the bayeuxd server: the HTTP and WebSocket
// transports, the Bayeux message processor, and the control API used to
// inspect sessions and inject deliveries into held connects.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
	"github.com/bayeuxd/bayeuxd/pkg/chaos"
	"github.com/bayeuxd/bayeuxd/pkg/config"
	"github.com/bayeuxd/bayeuxd/pkg/connect"
	"github.com/bayeuxd/bayeuxd/pkg/logging"
	"github.com/bayeuxd/bayeuxd/pkg/metrics"
	"github.com/bayeuxd/bayeuxd/pkg/requestlog"
	"github.com/bayeuxd/bayeuxd/pkg/session"
)

// messageCounters groups the per-channel instruments the processor updates.
type messageCounters struct {
	inbound *metrics.LabeledCounter
}

// Server is the bayeuxd mock server engine.
type Server struct {
	cfg       *config.Config
	log       *slog.Logger
	registry  *session.Registry
	scheduler *connect.Scheduler
	processor *Processor
	injector  *chaos.Injector
	reqlog    *requestlog.Store

	metrics        *metrics.Registry
	activeSessions *metrics.Gauge
	activeHolds    *metrics.Gauge
	chaosFaults    *metrics.Counter
	deliveries     *metrics.Counter

	httpServer *http.Server
	listener   net.Listener

	mu        sync.Mutex
	running   bool
	startTime time.Time
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer builds a server from cfg. The registry, scheduler, validator,
// and chaos injector are wired here; the expiry hook releases any connect
// hold an expiring session still has open.
func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		cfg: cfg,
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.scheduler = connect.NewScheduler(
		time.Duration(cfg.ConnectTimeout)*time.Millisecond,
		connect.WithLogger(s.log),
	)

	policy := session.ExpiryPolicy{
		MaxConnects: cfg.ExpireClientIDsAfter,
		MaxAge:      time.Duration(cfg.ExpireClientIDsAfterSeconds) * time.Second,
	}
	registry, err := session.NewRegistry(policy,
		session.WithLogger(s.log),
		session.WithOnExpire(func(clientID string) {
			s.scheduler.Expire(clientID)
		}),
	)
	if err != nil {
		return nil, err
	}
	s.registry = registry

	s.reqlog = requestlog.NewStore(cfg.MaxLogEntries)
	s.injector = chaos.NewInjector(cfg.ChaosProbability)

	s.metrics = metrics.NewRegistry()
	counters := &messageCounters{
		inbound: s.metrics.NewLabeledCounter("bayeuxd_messages_total", "Bayeux messages processed, by channel.", "channel"),
	}
	s.activeSessions = s.metrics.NewGauge("bayeuxd_active_sessions", "Sessions currently in the registry.")
	s.activeHolds = s.metrics.NewGauge("bayeuxd_connects_held", "Connect requests currently held open.")
	s.chaosFaults = s.metrics.NewCounter("bayeuxd_chaos_faults_total", "Chaos faults injected.")
	s.deliveries = s.metrics.NewCounter("bayeuxd_deliveries_total", "Events delivered into held connects via the control API.")

	validator := bayeux.NewValidator(!cfg.NoValidation)
	s.processor = NewProcessor(cfg, validator, registry, s.scheduler, s.reqlog, counters, s.log)

	return s, nil
}

// Processor returns the message processor, for transports embedded in other
// test harnesses.
func (s *Server) Processor() *Processor {
	return s.processor
}

// Handler returns the full HTTP handler, including the control API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/cometd", s.handleBayeux)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/control/sessions", s.handleSessions)
	mux.HandleFunc("/control/deliver", s.handleDeliver)
	mux.HandleFunc("/control/requests", s.handleRequests)
	return mux
}

// Start begins listening. It returns once the listener is bound; serving
// continues in the background until Stop.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// Long polls ride the handler goroutine, so the write timeout must
		// exceed the connect hold timeout.
		WriteTimeout:      time.Duration(s.cfg.ConnectTimeout)*time.Millisecond + 10*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.running = true
	s.startTime = time.Now()
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", "error", err)
		}
	}()

	s.log.Info("bayeuxd listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop shuts the server down gracefully: the HTTP server drains within ctx,
// then the registry is torn down, releasing all sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	httpServer := s.httpServer
	s.mu.Unlock()

	var err error
	if wasRunning && httpServer != nil {
		err = httpServer.Shutdown(ctx)
	}
	s.registry.Close()
	s.log.Info("bayeuxd stopped")
	return err
}
