package stream

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"

	"github.com/cartbridge/cartbridge/internal/shared/id"
)

// Sink is the writable end of one event stream. gin's ResponseWriter
// satisfies it; tests supply fakes.
type Sink interface {
	io.Writer
	http.Flusher
}

// Session represents one open outbound event stream. It exclusively owns
// its sink: all writes go through the session's lock.
type Session struct {
	ID        id.SessionID
	CreatedAt time.Time

	mu     sync.Mutex
	sink   Sink
	closed bool
	done   chan struct{}
}

func newSession(sink Sink) *Session {
	return &Session{
		ID:        id.NewSessionID(),
		CreatedAt: time.Now(),
		sink:      sink,
		done:      make(chan struct{}),
	}
}

// WriteComment writes an unlabeled comment frame (": <text>"). Comment
// frames carry the connection-established marker and heartbeats; stream
// parsers skip them without ambiguity.
func (s *Session) WriteComment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.ID)
	}

	if _, err := fmt.Fprintf(s.sink, ": %s\n\n", text); err != nil {
		return fmt.Errorf("comment write failed: %w", err)
	}
	s.sink.Flush()
	return nil
}

// WriteEvent writes a typed event frame ("event: <name>\ndata: <data>\n\n").
func (s *Session) WriteEvent(event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.ID)
	}

	if err := sse.Encode(s.sink, sse.Event{Event: event, Data: data}); err != nil {
		return fmt.Errorf("event write failed: %w", err)
	}
	s.sink.Flush()
	return nil
}

// close marks the session closed and releases its heartbeat. Idempotent.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
