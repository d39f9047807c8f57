// HTTP transport: decodes the Bayeux envelope, applies chaos, and hands the
// batch to the processor.

package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
)

// handleBayeux serves POST /cometd for long-polling clients and upgrades to
// WebSocket when requested.
func (s *Server) handleBayeux(w http.ResponseWriter, r *http.Request) {
	if isWebSocketUpgrade(r) {
		s.serveWebSocket(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msgs, err := decodeEnvelope(r)
	if err != nil {
		s.log.Debug("malformed request body", "error", err)
		writeMessages(w, http.StatusBadRequest, []bayeux.Message{{
			Successful: bayeux.Bool(false),
			Error:      "400::bad_request::malformed_payload",
			Advice:     &bayeux.Advice{Reconnect: bayeux.ReconnectNone},
		}})
		return
	}

	// Chaos never hits the handshake: a client that cannot obtain an
	// identity cannot exercise anything else.
	if len(msgs) > 0 && msgs[0].Channel != bayeux.MetaHandshake {
		if resp, fired := s.injector.Pick(); fired {
			s.chaosFaults.Inc()
			s.log.Info("chaos fault injected", "status", resp.Status, "channel", msgs[0].Channel)
			if resp.Status == http.StatusOK {
				writeMessages(w, http.StatusOK, chaosSuccess(msgs))
				return
			}
			http.Error(w, resp.Message, resp.Status)
			return
		}
	}

	responses := s.processor.Process(r.Context(), "http", msgs)
	writeMessages(w, http.StatusOK, responses)
}

// maxBodyBytes bounds the request body; Bayeux meta traffic is tiny.
const maxBodyBytes = 1 << 20

// decodeEnvelope parses the request body; the wire envelope is a JSON array
// of messages, but a bare object is accepted too.
func decodeEnvelope(r *http.Request) ([]bayeux.Message, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	var msgs []bayeux.Message
	if err := json.Unmarshal(body, &msgs); err == nil && len(msgs) > 0 {
		return msgs, nil
	}
	var single bayeux.Message
	if err := json.Unmarshal(body, &single); err == nil && single.Channel != "" {
		return []bayeux.Message{single}, nil
	}
	return nil, errors.New("body is not a JSON message array")
}

func writeMessages(w http.ResponseWriter, status int, msgs []bayeux.Message) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(msgs)
}

// chaosSuccess builds the hollow success the chaos 200 path answers with.
func chaosSuccess(msgs []bayeux.Message) []bayeux.Message {
	out := make([]bayeux.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, bayeux.Message{
			Channel:    m.Channel,
			ID:         m.ID,
			ClientID:   m.ClientID,
			Successful: bayeux.Bool(true),
		})
	}
	return out
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
