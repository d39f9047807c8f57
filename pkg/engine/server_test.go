package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
	"github.com/bayeuxd/bayeuxd/pkg/chaos"
	"github.com/bayeuxd/bayeuxd/pkg/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.ConnectTimeout = 50
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Stop(context.Background())
	})
	return s, ts
}

func postBayeux(t *testing.T, url string, msgs []bayeux.Message) []bayeux.Message {
	t.Helper()
	body, err := json.Marshal(msgs)
	require.NoError(t, err)
	resp, err := http.Post(url+"/cometd", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []bayeux.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func handshakeHTTP(t *testing.T, url string) string {
	t.Helper()
	out := postBayeux(t, url, []bayeux.Message{{
		Channel:                  bayeux.MetaHandshake,
		ID:                       "1",
		Version:                  "1.0",
		SupportedConnectionTypes: []string{"long-polling"},
	}})
	require.Len(t, out, 1)
	require.True(t, out[0].IsSuccessful())
	return out[0].ClientID
}

func TestServer_HandshakeAndConnectOverHTTP(t *testing.T) {
	_, ts := newTestServer(t, nil)
	clientID := handshakeHTTP(t, ts.URL)

	out := postBayeux(t, ts.URL, []bayeux.Message{{
		Channel:        bayeux.MetaConnect,
		ID:             "2",
		ClientID:       clientID,
		ConnectionType: "long-polling",
	}})
	require.Len(t, out, 1)
	assert.True(t, out[0].IsSuccessful())
	assert.Equal(t, bayeux.ReconnectRetry, out[0].Advice.Reconnect)
}

func TestServer_MalformedBody(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/cometd", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out []bayeux.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.False(t, out[0].IsSuccessful())
}

func TestServer_ControlDeliverReleasesConnect(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) { cfg.ConnectTimeout = 3000 })
	clientID := handshakeHTTP(t, ts.URL)

	connectDone := make(chan []bayeux.Message, 1)
	go func() {
		connectDone <- postBayeux(t, ts.URL, []bayeux.Message{{
			Channel:        bayeux.MetaConnect,
			ID:             "2",
			ClientID:       clientID,
			ConnectionType: "long-polling",
		}})
	}()

	// Wait for the connect to be held, then inject an event.
	require.Eventually(t, func() bool {
		body, _ := json.Marshal(DeliverRequest{
			ClientID: clientID,
			Messages: []bayeux.Message{{Channel: "/news", Data: "flash"}},
		})
		resp, err := http.Post(ts.URL+"/control/deliver", "application/json", bytes.NewReader(body))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case out := <-connectDone:
		require.Len(t, out, 2)
		assert.True(t, out[0].IsSuccessful())
		assert.Equal(t, "/news", out[1].Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not release after delivery")
	}
}

func TestServer_ControlSessions(t *testing.T) {
	_, ts := newTestServer(t, nil)
	clientID := handshakeHTTP(t, ts.URL)

	resp, err := http.Get(ts.URL + "/control/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Count    int `json:"count"`
		Sessions []struct {
			ClientID string `json:"clientId"`
		} `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, clientID, payload.Sessions[0].ClientID)
}

func TestServer_ControlRequestsHistory(t *testing.T) {
	_, ts := newTestServer(t, nil)
	handshakeHTTP(t, ts.URL)

	resp, err := http.Get(ts.URL + "/control/requests")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload struct {
		Count   int `json:"count"`
		Entries []struct {
			Channel    string `json:"channel"`
			Successful bool   `json:"successful"`
		} `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, bayeux.MetaHandshake, payload.Entries[0].Channel)
	assert.True(t, payload.Entries[0].Successful)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/control/requests", nil)
	require.NoError(t, err)
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	dresp.Body.Close()
	assert.Equal(t, http.StatusNoContent, dresp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t, nil)
	handshakeHTTP(t, ts.URL)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `bayeuxd_messages_total{channel="/meta/handshake"} 1`)
	assert.Contains(t, out, "bayeuxd_active_sessions 1")
}

func TestServer_Healthz(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ChaosAlwaysFires(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) { cfg.ChaosProbability = 1 })

	// Handshake is exempt from chaos.
	clientID := handshakeHTTP(t, ts.URL)

	// Non-handshake traffic always draws a chaos response.
	body, _ := json.Marshal([]bayeux.Message{{
		Channel: bayeux.MetaSubscribe, ClientID: clientID, Subscription: "/foo",
	}})
	resp, err := http.Post(ts.URL+"/cometd", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	statuses := make([]int, 0, len(chaos.DefaultResponses))
	for _, r := range chaos.DefaultResponses {
		statuses = append(statuses, r.Status)
	}
	assert.Contains(t, statuses, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0 // ephemeral
	cfg.ConnectTimeout = 50
	s, err := NewServer(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	addr := s.Addr()
	require.NotEmpty(t, addr)

	clientID := handshakeHTTP(t, "http://"+addr)
	assert.NotEmpty(t, clientID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestServer_WebSocketTransport(t *testing.T) {
	_, ts := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/cometd"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	hs, _ := json.Marshal([]bayeux.Message{{
		Channel:                  bayeux.MetaHandshake,
		ID:                       "1",
		Version:                  "1.0",
		SupportedConnectionTypes: []string{"websocket"},
	}})
	require.NoError(t, conn.Write(ctx, websocket.MessageText, hs))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out []bayeux.Message
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.True(t, out[0].IsSuccessful())
	assert.NotEmpty(t, out[0].ClientID)

	// Subscribe over the same connection.
	sub, _ := json.Marshal([]bayeux.Message{{
		Channel: bayeux.MetaSubscribe, ID: "2", ClientID: out[0].ClientID, Subscription: "/foo",
	}})
	require.NoError(t, conn.Write(ctx, websocket.MessageText, sub))
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out[0].IsSuccessful())
	assert.Equal(t, "/foo", out[0].Subscription)
}

func TestServer_TimeExpirySweepsIdleSession(t *testing.T) {
	s, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.ExpireClientIDsAfterSeconds = 1
	})
	clientID := handshakeHTTP(t, ts.URL)

	require.Eventually(t, func() bool {
		_, err := s.registry.Lookup(clientID)
		return err != nil
	}, 5*time.Second, 50*time.Millisecond)

	// A connect after expiry tells the client to re-handshake.
	out := postBayeux(t, ts.URL, []bayeux.Message{{
		Channel:        bayeux.MetaConnect,
		ID:             "2",
		ClientID:       clientID,
		ConnectionType: "long-polling",
	}})
	require.Len(t, out, 1)
	assert.False(t, out[0].IsSuccessful())
	assert.Equal(t, bayeux.ReconnectHandshake, out[0].Advice.Reconnect)
}

func TestServer_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ExpireClientIDsAfter = 1
	cfg.ExpireClientIDsAfterSeconds = 1
	_, err := NewServer(cfg)
	assert.ErrorIs(t, err, config.ErrBothExpireAxes)
}

func TestServer_UnknownChannelOverHTTP(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) { cfg.NoValidation = true })
	out := postBayeux(t, ts.URL, []bayeux.Message{{Channel: "/meta/bogus"}})
	require.Len(t, out, 1)
	assert.Equal(t, bayeux.ErrUnknownChannel, out[0].Error)
}
