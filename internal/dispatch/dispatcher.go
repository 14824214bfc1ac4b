// Package dispatch routes inbound protocol messages: shape validation,
// notification detection, method routing, and handoff of the completed
// response to the stream layer for delivery.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/infrastructure/logging"
	"github.com/cartbridge/cartbridge/internal/infrastructure/monitoring"
	"github.com/cartbridge/cartbridge/internal/protocol"
	"github.com/cartbridge/cartbridge/internal/registry"
	"github.com/cartbridge/cartbridge/internal/shared/id"
	"github.com/cartbridge/cartbridge/internal/stream"
)

// ProtocolVersion is the handshake version descriptor returned by
// initialize.
const ProtocolVersion = "2024-11-05"

// ServerInfo describes this relay in the handshake response.
type ServerInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	InstanceID string `json:"instanceId,omitempty"`
}

// Ack is the synchronous transport-level acknowledgment for one submitted
// message: an HTTP status plus a JSON body. The protocol-level response, if
// any, travels on the stream.
type Ack struct {
	Status int
	Body   interface{}
}

// Dispatcher is a stateless state machine over one inbound message at a
// time; all continuity lives in the stream sessions.
type Dispatcher struct {
	registry  *registry.Registry
	streams   *stream.Directory
	info      ServerInfo
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	afterTool func(ctx context.Context)
}

// New creates a dispatcher over a tool registry and a session directory.
func New(reg *registry.Registry, streams *stream.Directory, info ServerInfo, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		streams:  streams,
		info:     info,
		logger:   logger,
	}
}

// WithMetrics attaches a metrics collector.
func (d *Dispatcher) WithMetrics(m *monitoring.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// WithAfterToolCall registers a hook invoked after every tool invocation.
// The wiring layer uses it to persist credentials once the driver has
// touched the site, without the dispatcher knowing about either.
func (d *Dispatcher) WithAfterToolCall(fn func(ctx context.Context)) *Dispatcher {
	d.afterTool = fn
	return d
}

// HandleMessage processes one raw inbound envelope and returns the
// synchronous acknowledgment for the submitting transport call.
func (d *Dispatcher) HandleMessage(ctx context.Context, raw []byte) Ack {
	reqID := id.NewRequestID()

	req, err := protocol.ParseRequest(raw)
	if err != nil {
		d.logger.Warn("Malformed envelope", zap.String("request_id", reqID.String()), zap.Error(err))
		return d.ackError(protocol.NewError(nil, protocol.CodeParseError, "parse error"))
	}

	// Gate 1: shape validation. No method name means the message is not
	// dispatchable at all.
	if req.Method == "" {
		d.logger.Warn("Envelope missing method", zap.String("request_id", reqID.String()))
		return d.ackError(protocol.NewError(req.ID, protocol.CodeInvalidRequest, "invalid request: missing method"))
	}

	if d.metrics != nil {
		d.metrics.MessagesTotal.WithLabelValues(req.Method).Inc()
	}
	d.logger.Debug("Message received",
		zap.String("request_id", reqID.String()),
		zap.String("method", req.Method),
		zap.Bool("notification", req.IsNotification()),
	)

	// Gate 2: notification test. Only a message with no id key at all is a
	// notification; id 0 and id null still expect replies.
	if req.IsNotification() {
		d.handleNotification(req)
		return Ack{Status: http.StatusAccepted, Body: map[string]string{"status": "accepted"}}
	}

	// Gate 3: method routing.
	resp := d.route(ctx, req)

	// Gate 4: delivery. If no stream is open the asynchronous channel
	// cannot be used and the synchronous ack itself reports the failure.
	if err := d.streams.Deliver(resp); err != nil {
		if errors.Is(err, stream.ErrNoSession) {
			d.logger.Warn("Response lost: no active stream",
				zap.String("request_id", reqID.String()),
				zap.String("method", req.Method),
			)
			return Ack{
				Status: http.StatusServiceUnavailable,
				Body:   map[string]string{"error": "no active stream session"},
			}
		}
		d.logger.Error("Response delivery failed",
			zap.String("request_id", reqID.String()),
			zap.Error(err),
		)
		return Ack{
			Status: http.StatusInternalServerError,
			Body:   map[string]string{"error": "delivery failed"},
		}
	}

	return Ack{Status: http.StatusAccepted, Body: map[string]string{"status": "accepted"}}
}

// ackError delivers an error response over the stream when possible and
// falls back to the synchronous channel when it is not.
func (d *Dispatcher) ackError(resp *protocol.Response) Ack {
	if err := d.streams.Deliver(resp); err == nil {
		return Ack{Status: http.StatusAccepted, Body: map[string]string{"status": "accepted"}}
	}
	return Ack{Status: http.StatusBadRequest, Body: resp}
}

func (d *Dispatcher) handleNotification(req *protocol.Request) {
	switch req.Method {
	case "notifications/initialized":
		d.logger.Info("Counterparty initialized")
	default:
		// Notifications produce no response frame even when unroutable.
		d.logger.Debug("Ignoring notification", zap.String("method", req.Method))
	}
}

func (d *Dispatcher) route(ctx context.Context, req *protocol.Request) *protocol.Response {
	respID := req.ResponseID()

	switch req.Method {
	case "initialize":
		return protocol.NewResult(respID, map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      d.info,
		})

	case "ping":
		return protocol.NewResult(respID, map[string]interface{}{})

	case "tools/list":
		return protocol.NewResult(respID, map[string]interface{}{
			"tools": d.registry.List(),
		})

	case "resources/list":
		return protocol.NewResult(respID, map[string]interface{}{
			"resources": []interface{}{},
		})

	case "prompts/list":
		return protocol.NewResult(respID, map[string]interface{}{
			"prompts": []interface{}{},
		})

	case "tools/call":
		return d.callTool(ctx, req, respID)

	default:
		return protocol.NewError(respID, protocol.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

// callTool invokes a registry tool. Driver-level failure is represented as
// a successful protocol response whose payload marks the operation failed:
// the protocol call succeeded, the product operation did not.
func (d *Dispatcher) callTool(ctx context.Context, req *protocol.Request, respID json.RawMessage) *protocol.Response {
	params, err := req.ParamsMap()
	if err != nil {
		return protocol.NewError(respID, protocol.CodeInvalidParams, err.Error())
	}

	name, _ := params["name"].(string)
	if name == "" {
		return protocol.NewError(respID, protocol.CodeInvalidParams, "tool name required")
	}
	args, _ := params["arguments"].(map[string]interface{})

	start := time.Now()
	result := d.registry.Call(ctx, name, args)
	if d.metrics != nil {
		d.metrics.RecordDriverCall(name, result.Success, time.Since(start))
	}
	if d.afterTool != nil {
		d.afterTool(ctx)
	}

	d.logger.Info("Tool invoked",
		zap.String("tool", name),
		zap.Bool("success", result.Success),
		zap.Duration("duration", time.Since(start)),
	)

	return protocol.NewResult(respID, result)
}
