// Control API: inspection and event-injection endpoints for test harnesses
// driving the mock.

package engine

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
)

// DeliverRequest is the body of POST /control/deliver: event messages to
// resolve an outstanding connect hold with.
type DeliverRequest struct {
	ClientID string           `json:"clientId"`
	Messages []bayeux.Message `json:"messages"`
}

// DeliverResponse reports whether a hold was waiting.
type DeliverResponse struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"uptime":    int(time.Since(s.startTime).Seconds()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	// Gauges are sampled at scrape time from their live sources.
	s.activeSessions.Set(int64(s.registry.Count()))
	s.activeHolds.Set(int64(s.scheduler.Len()))

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = s.metrics.Write(w)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	infos := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(infos),
		"sessions": infos,
	})
}

// handleDeliver injects events into a held connect, releasing the long poll
// early with the supplied payload.
func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req DeliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, DeliverResponse{Error: "malformed body: " + err.Error()})
		return
	}
	if req.ClientID == "" {
		writeJSON(w, http.StatusBadRequest, DeliverResponse{Error: "clientId is required"})
		return
	}

	if !s.scheduler.Deliver(req.ClientID, req.Messages) {
		writeJSON(w, http.StatusNotFound, DeliverResponse{Error: "no connect outstanding for clientId"})
		return
	}
	s.deliveries.Inc()
	s.log.Debug("events delivered", "clientId", req.ClientID, "count", len(req.Messages))
	writeJSON(w, http.StatusOK, DeliverResponse{Delivered: true})
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		entries := s.reqlog.List(limit)
		writeJSON(w, http.StatusOK, map[string]any{
			"count":   len(entries),
			"entries": entries,
		})
	case http.MethodDelete:
		s.reqlog.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
