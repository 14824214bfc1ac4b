// Package http exposes the bridge over HTTP: the event stream endpoint,
// the message submission endpoint, and the health probe.
package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cartbridge/cartbridge/internal/dispatch"
	"github.com/cartbridge/cartbridge/internal/infrastructure/logging"
	"github.com/cartbridge/cartbridge/internal/stream"
)

// maxMessageBytes bounds the size of one submitted envelope.
const maxMessageBytes = 1 << 20

// Handlers holds the HTTP endpoint implementations.
type Handlers struct {
	streams    *stream.Directory
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
	service    string
	version    string
}

// NewHandlers creates the endpoint set.
func NewHandlers(streams *stream.Directory, dispatcher *dispatch.Dispatcher, logger *logging.Logger, service, version string) *Handlers {
	return &Handlers{
		streams:    streams,
		dispatcher: dispatcher,
		logger:     logger,
		service:    service,
		version:    version,
	}
}

// Health reports liveness and the current stream session count.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  h.service,
		"version":  h.version,
		"sessions": h.streams.Count(),
	})
}

// OpenStream upgrades the connection to a long-lived event stream. The
// handler blocks until the client disconnects; all frames after the
// handshake are pushed by the session directory.
func (h *Handlers) OpenStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sink, ok := c.Writer.(stream.Sink)
	if !ok {
		h.logger.Error("Response writer cannot stream")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	s, err := h.streams.Open(sink)
	if err != nil {
		h.logger.Error("Stream open failed", zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	defer h.streams.Close(s.ID)

	<-c.Request.Context().Done()
}

// SubmitMessage accepts one protocol envelope and returns the dispatcher's
// synchronous acknowledgment. The protocol-level response travels on the
// stream, not in this reply.
func (h *Handlers) SubmitMessage(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMessageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ack := h.dispatcher.HandleMessage(c.Request.Context(), body)
	c.JSON(ack.Status, ack.Body)
}
