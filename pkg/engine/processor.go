package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/bayeuxd/bayeuxd/internal/id"
	"github.com/bayeuxd/bayeuxd/pkg/bayeux"
	"github.com/bayeuxd/bayeuxd/pkg/config"
	"github.com/bayeuxd/bayeuxd/pkg/connect"
	"github.com/bayeuxd/bayeuxd/pkg/logging"
	"github.com/bayeuxd/bayeuxd/pkg/requestlog"
	"github.com/bayeuxd/bayeuxd/pkg/session"
)

// supportedConnectionTypes is what the server advertises on handshake.
var supportedConnectionTypes = []string{
	bayeux.ConnectionTypeLongPolling,
	bayeux.ConnectionTypeWebSocket,
}

// Processor routes validated Bayeux messages to the meta channel handlers.
// It composes the validator, session registry, advice generator, and connect
// scheduler; transports hand it parsed message batches and encode whatever
// it returns.
type Processor struct {
	cfg       *config.Config
	validator *bayeux.Validator
	registry  *session.Registry
	scheduler *connect.Scheduler
	reqlog    *requestlog.Store
	messages  *messageCounters
	log       *slog.Logger
}

// NewProcessor wires a processor from its collaborators. reqlog and counters
// may be nil when history or metrics are not wanted.
func NewProcessor(cfg *config.Config, validator *bayeux.Validator, registry *session.Registry,
	scheduler *connect.Scheduler, reqlog *requestlog.Store, counters *messageCounters, log *slog.Logger) *Processor {
	if log == nil {
		log = logging.Nop()
	}
	return &Processor{
		cfg:       cfg,
		validator: validator,
		registry:  registry,
		scheduler: scheduler,
		reqlog:    reqlog,
		messages:  counters,
		log:       log,
	}
}

// Process handles a batch of inbound messages and returns the response
// batch. Connect messages block until their hold releases, so Process can
// take up to the configured connect timeout.
func (p *Processor) Process(ctx context.Context, transport string, msgs []bayeux.Message) []bayeux.Message {
	responses := make([]bayeux.Message, 0, len(msgs))
	for i := range msgs {
		responses = append(responses, p.processOne(ctx, transport, &msgs[i])...)
	}
	return responses
}

func (p *Processor) processOne(ctx context.Context, transport string, msg *bayeux.Message) []bayeux.Message {
	start := time.Now()
	p.log.Debug("processing message", "channel", msg.Channel, "clientId", msg.ClientID, "id", msg.ID)
	if p.messages != nil {
		p.messages.inbound.Inc(msg.Channel)
	}

	var out []bayeux.Message
	if err := p.validator.Validate(msg); err != nil {
		out = []bayeux.Message{p.malformedResponse(msg, err)}
	} else {
		switch msg.Channel {
		case bayeux.MetaHandshake:
			out = []bayeux.Message{p.handleHandshake(msg)}
		case bayeux.MetaConnect:
			out = p.handleConnect(ctx, msg)
		case bayeux.MetaDisconnect:
			out = []bayeux.Message{p.handleDisconnect(msg)}
		case bayeux.MetaSubscribe:
			out = []bayeux.Message{p.handleSubscribe(msg)}
		case bayeux.MetaUnsubscribe:
			out = []bayeux.Message{p.handleUnsubscribe(msg)}
		default:
			p.log.Warn("unknown channel", "channel", msg.Channel)
			out = []bayeux.Message{{
				Channel:    msg.Channel,
				ID:         msg.ID,
				Successful: bayeux.Bool(false),
				Error:      bayeux.ErrUnknownChannel,
			}}
		}
	}

	p.record(transport, msg, &out[0], time.Since(start))
	return out
}

func (p *Processor) malformedResponse(msg *bayeux.Message, err error) bayeux.Message {
	p.log.Debug("validation failed", "channel", msg.Channel, "error", err)
	errStr := err.Error()
	if verr, ok := err.(*bayeux.ValidationError); ok {
		errStr = verr.Bayeux()
	}
	return bayeux.Message{
		Channel:    msg.Channel,
		ID:         msg.ID,
		Successful: bayeux.Bool(false),
		Error:      errStr,
		Advice:     &bayeux.Advice{Reconnect: bayeux.ReconnectNone},
	}
}

// record captures the message outcome for the control API history.
func (p *Processor) record(transport string, msg *bayeux.Message, resp *bayeux.Message, elapsed time.Duration) {
	if p.reqlog == nil {
		return
	}
	p.reqlog.Log(requestlog.Entry{
		ID:         id.Short(),
		Timestamp:  time.Now().UTC(),
		Transport:  transport,
		Channel:    msg.Channel,
		ClientID:   msg.ClientID,
		MessageID:  msg.ID,
		Successful: resp.IsSuccessful(),
		Error:      resp.Error,
		Elapsed:    elapsed,
	})
}
