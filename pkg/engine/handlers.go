// Meta channel handlers. Each one turns protocol-level failures into a
// well-formed unsuccessful response; nothing here terminates a connection.

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
	"github.com/bayeuxd/bayeuxd/pkg/connect"
	"github.com/bayeuxd/bayeuxd/pkg/session"
)

// handleHandshake creates a fresh session. Any inbound clientId is ignored:
// identity is always issued by the server.
func (p *Processor) handleHandshake(msg *bayeux.Message) bayeux.Message {
	s := p.registry.Create()
	p.log.Debug("handshake", "clientId", s.ID())
	return bayeux.Message{
		Channel:                  bayeux.MetaHandshake,
		ID:                       msg.ID,
		ClientID:                 s.ID(),
		Successful:               bayeux.Bool(true),
		Version:                  bayeux.ProtocolVersion,
		SupportedConnectionTypes: supportedConnectionTypes,
		Advice:                   ComputeAdvice(StatusActive, p.cfg),
	}
}

// handleConnect implements the long-poll cycle: look the session up, hold
// the request, and release by timeout, delivery, or expiry.
func (p *Processor) handleConnect(ctx context.Context, msg *bayeux.Message) []bayeux.Message {
	s, err := p.registry.Lookup(msg.ClientID)
	if err != nil {
		return []bayeux.Message{p.connectFailure(msg, bayeux.ErrUnknownClient(msg.ClientID))}
	}

	// Forced reconnect: past the configured threshold the connect is not
	// held at all, the client is told to retry immediately.
	if p.shouldForceReconnect(s) {
		_ = p.registry.ResetConnectionCount(msg.ClientID)
		p.log.Debug("forcing reconnect", "clientId", msg.ClientID)
		return []bayeux.Message{{
			Channel:    bayeux.MetaConnect,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: bayeux.Bool(true),
			Advice:     &bayeux.Advice{Reconnect: bayeux.ReconnectRetry, Interval: p.cfg.ConnectInterval, Timeout: p.cfg.ConnectTimeout},
		}}
	}

	hold, err := p.scheduler.Register(msg.ClientID)
	if err != nil {
		if errors.Is(err, connect.ErrConcurrentConnect) {
			p.log.Warn("concurrent connect rejected", "clientId", msg.ClientID)
			return []bayeux.Message{p.connectFailure(msg, bayeux.ErrConcurrentConnect(msg.ClientID))}
		}
		return []bayeux.Message{p.connectFailure(msg, bayeux.ErrInternal(err))}
	}

	res := hold.Await(ctx)
	p.log.Debug("connect released", "clientId", msg.ClientID, "reason", res.Reason.String())

	switch res.Reason {
	case connect.ReasonExpired:
		// The session expired mid-hold; it is already gone.
		return []bayeux.Message{{
			Channel:    bayeux.MetaConnect,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: bayeux.Bool(false),
			Error:      bayeux.ErrClientExpired(msg.ClientID),
			Advice:     ComputeAdvice(StatusExpired, p.cfg),
		}}
	case connect.ReasonCancelled:
		// The client went away; the response is best-effort.
		return []bayeux.Message{{
			Channel:    bayeux.MetaConnect,
			ID:         msg.ID,
			ClientID:   msg.ClientID,
			Successful: bayeux.Bool(true),
			Advice:     ComputeAdvice(StatusActive, p.cfg),
		}}
	}

	// Normal release: record the completed connect. A touch that trips the
	// expiry policy means this was the session's last permitted connect;
	// the response still succeeds but advises a re-handshake.
	advice := ComputeAdvice(StatusActive, p.cfg)
	if _, err := p.registry.Touch(msg.ClientID); err != nil {
		advice = ComputeAdvice(StatusExpired, p.cfg)
	} else if msg.Advice != nil && msg.Advice.Reconnect != "" {
		// Clients may request a reconnect directive; echo it back.
		advice.Reconnect = msg.Advice.Reconnect
	}

	resp := bayeux.Message{
		Channel:    bayeux.MetaConnect,
		ID:         msg.ID,
		ClientID:   msg.ClientID,
		Successful: bayeux.Bool(true),
		Advice:     advice,
	}
	return append([]bayeux.Message{resp}, res.Messages...)
}

// shouldForceReconnect checks the reconnection axis, count or age.
func (p *Processor) shouldForceReconnect(s *session.Session) bool {
	if p.cfg.ReconnectionInterval > 0 && s.ConnectionCount() > p.cfg.ReconnectionInterval {
		return true
	}
	if p.cfg.ReconnectionIntervalSeconds > 0 &&
		time.Since(s.CreatedAt()) > time.Duration(p.cfg.ReconnectionIntervalSeconds)*time.Second {
		return true
	}
	return false
}

func (p *Processor) connectFailure(msg *bayeux.Message, errStr string) bayeux.Message {
	return bayeux.Message{
		Channel:    bayeux.MetaConnect,
		ID:         msg.ID,
		ClientID:   msg.ClientID,
		Successful: bayeux.Bool(false),
		Error:      errStr,
		Advice:     ComputeAdvice(StatusUnknown, p.cfg),
	}
}

// handleDisconnect removes the session. Disconnecting an unknown session
// leaves the registry untouched and reports failure.
func (p *Processor) handleDisconnect(msg *bayeux.Message) bayeux.Message {
	existed := p.registry.Remove(msg.ClientID)
	if existed {
		// Release any hold the departing client still has outstanding.
		p.scheduler.Expire(msg.ClientID)
		p.log.Debug("disconnect", "clientId", msg.ClientID)
	}
	resp := bayeux.Message{
		Channel:    bayeux.MetaDisconnect,
		ID:         msg.ID,
		ClientID:   msg.ClientID,
		Successful: bayeux.Bool(existed),
	}
	if !existed {
		resp.Error = bayeux.ErrUnknownClient(msg.ClientID)
	}
	return resp
}

func (p *Processor) handleSubscribe(msg *bayeux.Message) bayeux.Message {
	err := p.registry.Subscribe(msg.ClientID, msg.Subscription)
	return p.subscriptionResponse(bayeux.MetaSubscribe, msg, err)
}

// handleUnsubscribe is idempotent: removing a never-subscribed channel
// still succeeds.
func (p *Processor) handleUnsubscribe(msg *bayeux.Message) bayeux.Message {
	err := p.registry.Unsubscribe(msg.ClientID, msg.Subscription)
	return p.subscriptionResponse(bayeux.MetaUnsubscribe, msg, err)
}

func (p *Processor) subscriptionResponse(channel string, msg *bayeux.Message, err error) bayeux.Message {
	resp := bayeux.Message{
		Channel:      channel,
		ID:           msg.ID,
		ClientID:     msg.ClientID,
		Subscription: msg.Subscription,
		Successful:   bayeux.Bool(err == nil),
	}
	if errors.Is(err, session.ErrUnknownClient) {
		resp.Error = bayeux.ErrUnknownClient(msg.ClientID)
		resp.Advice = ComputeAdvice(StatusUnknown, p.cfg)
	} else if err != nil {
		resp.Error = bayeux.ErrInternal(err)
	}
	return resp
}
