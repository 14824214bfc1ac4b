// Package stream owns the set of open outbound event streams and the
// mechanics of writing frames onto them: connection markers, the endpoint
// handshake, heartbeats, and response delivery.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/infrastructure/logging"
	"github.com/cartbridge/cartbridge/internal/infrastructure/monitoring"
	"github.com/cartbridge/cartbridge/internal/protocol"
	"github.com/cartbridge/cartbridge/internal/shared/id"
)

// ErrNoSession is returned by Deliver when zero streams are open. The
// caller must surface this on the synchronous channel rather than drop the
// message silently.
var ErrNoSession = errors.New("no active stream session")

// Frame event types distinct from the unlabeled comment frames.
const (
	EventEndpoint = "endpoint"
	EventMessage  = "message"
)

// defaultHeartbeat is used when the configured interval is not positive;
// time.NewTicker panics on zero.
const defaultHeartbeat = 30 * time.Second

// Directory is the injectable active-session set. Delivery targets the most
// recently opened still-active session, which degrades to "the only
// session" in the single-caller deployment this relay targets.
type Directory struct {
	messagePath string
	heartbeat   time.Duration
	logger      *logging.Logger
	metrics     *monitoring.Metrics

	mu       sync.Mutex
	sessions []*Session // open order, newest last
}

// NewDirectory creates an empty session directory. messagePath is where the
// endpoint frame tells the counterparty to POST follow-up requests.
func NewDirectory(messagePath string, heartbeat time.Duration, logger *logging.Logger) *Directory {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Directory{
		messagePath: messagePath,
		heartbeat:   heartbeat,
		logger:      logger,
	}
}

// WithMetrics attaches a metrics collector.
func (d *Directory) WithMetrics(m *monitoring.Metrics) *Directory {
	d.metrics = m
	return d
}

// Open registers a new session on the sink, writes the connection marker
// and endpoint handshake frames, and starts the heartbeat. The heartbeat
// keeps idle intermediaries from closing the connection and doubles as a
// continuous liveness probe: a failed write tears the session down
// immediately.
func (d *Directory) Open(sink Sink) (*Session, error) {
	s := newSession(sink)

	// Register before the handshake: a counterparty that POSTs the moment
	// it sees the endpoint frame must already find the session deliverable.
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	count := len(d.sessions)
	d.mu.Unlock()

	if err := s.WriteComment("connected"); err != nil {
		d.Close(s.ID)
		return nil, fmt.Errorf("stream open failed: %w", err)
	}

	endpoint := fmt.Sprintf("%s?sessionId=%s", d.messagePath, s.ID)
	if err := s.WriteEvent(EventEndpoint, endpoint); err != nil {
		d.Close(s.ID)
		return nil, fmt.Errorf("endpoint handshake failed: %w", err)
	}

	if d.metrics != nil {
		d.metrics.SessionsOpened.Inc()
		d.metrics.SessionsActive.Set(float64(count))
	}
	d.logger.Info("Stream opened",
		zap.String("session_id", s.ID.String()),
		zap.Int("active", count),
	)

	go d.heartbeatLoop(s)
	return s, nil
}

// Close removes a session from the active set and cancels its heartbeat.
// Idempotent: counterparty disconnect, local write error, and stream error
// may all trigger it without double-teardown.
func (d *Directory) Close(sessionID id.SessionID) {
	d.mu.Lock()
	idx := -1
	for i, s := range d.sessions {
		if s.ID == sessionID {
			idx = i
			break
		}
	}
	var s *Session
	if idx >= 0 {
		s = d.sessions[idx]
		d.sessions = append(d.sessions[:idx], d.sessions[idx+1:]...)
	}
	count := len(d.sessions)
	d.mu.Unlock()

	if s == nil {
		return
	}
	s.close()

	if d.metrics != nil {
		d.metrics.SessionsActive.Set(float64(count))
	}
	d.logger.Info("Stream closed",
		zap.String("session_id", sessionID.String()),
		zap.Int("active", count),
	)
}

// CloseAll tears down every open session.
func (d *Directory) CloseAll() {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = nil
	d.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	if d.metrics != nil {
		d.metrics.SessionsActive.Set(0)
	}
}

// Count returns the number of open sessions.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Deliver frames a response envelope as a message event on the most
// recently opened still-active session. A write failure tears that session
// down and the delivery fails; the message is not retried elsewhere.
func (d *Directory) Deliver(resp *protocol.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	d.mu.Lock()
	var target *Session
	if n := len(d.sessions); n > 0 {
		target = d.sessions[n-1]
	}
	d.mu.Unlock()

	if target == nil {
		if d.metrics != nil {
			d.metrics.DeliveryFailures.Inc()
		}
		return ErrNoSession
	}

	if err := target.WriteEvent(EventMessage, string(data)); err != nil {
		d.logger.Warn("Delivery write failed, tearing down session",
			zap.String("session_id", target.ID.String()),
			zap.Error(err),
		)
		d.Close(target.ID)
		if d.metrics != nil {
			d.metrics.DeliveryFailures.Inc()
		}
		return fmt.Errorf("delivery to %s failed: %w", target.ID, err)
	}

	if d.metrics != nil {
		d.metrics.DeliveriesTotal.Inc()
	}
	return nil
}

// heartbeatLoop emits comment frames on a fixed period until the session
// closes. It runs independently of any in-flight tool call so the stream
// never looks idle mid-operation.
func (d *Directory) heartbeatLoop(s *Session) {
	ticker := time.NewTicker(d.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.WriteComment("heartbeat"); err != nil {
				d.logger.Warn("Heartbeat failed, tearing down session",
					zap.String("session_id", s.ID.String()),
					zap.Error(err),
				)
				if d.metrics != nil {
					d.metrics.HeartbeatFailures.Inc()
				}
				d.Close(s.ID)
				return
			}
		}
	}
}
