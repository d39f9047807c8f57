// WebSocket transport. Each text frame carries the same JSON message array
// as the HTTP envelope and is answered frame-for-frame on the same
// connection; a held connect suspends the read loop, matching the one
// outstanding connect per session the protocol allows.

package engine

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
)

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // test double: any origin may connect
	})
	if err != nil {
		s.log.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.log.Debug("websocket connected", "remote", r.RemoteAddr)
	ctx := r.Context()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			s.log.Debug("websocket closed", "error", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msgs []bayeux.Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			var single bayeux.Message
			if err := json.Unmarshal(data, &single); err != nil || single.Channel == "" {
				s.writeWS(ctx, conn, []bayeux.Message{{
					Successful: bayeux.Bool(false),
					Error:      "400::bad_request::malformed_payload",
					Advice:     &bayeux.Advice{Reconnect: bayeux.ReconnectNone},
				}})
				continue
			}
			msgs = []bayeux.Message{single}
		}

		responses := s.processor.Process(ctx, "websocket", msgs)
		if !s.writeWS(ctx, conn, responses) {
			return
		}
	}
}

func (s *Server) writeWS(ctx context.Context, conn *websocket.Conn, msgs []bayeux.Message) bool {
	data, err := json.Marshal(msgs)
	if err != nil {
		s.log.Error("websocket encode failed", "error", err)
		return false
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.log.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}
