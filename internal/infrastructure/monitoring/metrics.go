package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Protocol metrics
	MessagesTotal    *prometheus.CounterVec
	DeliveriesTotal  prometheus.Counter
	DeliveryFailures prometheus.Counter

	// Stream metrics
	SessionsActive    prometheus.Gauge
	SessionsOpened    prometheus.Counter
	HeartbeatFailures prometheus.Counter

	// Driver metrics
	DriverCalls    *prometheus.CounterVec
	DriverDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector with its own registry so repeated
// construction (tests) never trips duplicate registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cartbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartbridge_protocol_messages_total",
				Help: "Inbound protocol messages by method",
			},
			[]string{"method"},
		),
		DeliveriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cartbridge_stream_deliveries_total",
				Help: "Response frames delivered onto a stream",
			},
		),
		DeliveryFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cartbridge_stream_delivery_failures_total",
				Help: "Response deliveries that found no writable stream",
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cartbridge_stream_sessions_active",
				Help: "Currently open event streams",
			},
		),
		SessionsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cartbridge_stream_sessions_opened_total",
				Help: "Event streams opened since start",
			},
		),
		HeartbeatFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cartbridge_stream_heartbeat_failures_total",
				Help: "Heartbeat writes that tore a session down",
			},
		),

		DriverCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartbridge_driver_calls_total",
				Help: "Capability driver calls by tool and status",
			},
			[]string{"tool", "status"},
		),
		DriverDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cartbridge_driver_call_duration_seconds",
				Help:    "Capability driver call duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
	}
}

// Handler returns the scrape handler for this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDriverCall records one driver call outcome.
func (m *Metrics) RecordDriverCall(tool string, success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "failed"
	}
	m.DriverCalls.WithLabelValues(tool, status).Inc()
	m.DriverDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// Middleware creates a Gin middleware for HTTP metrics collection.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.RequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.RequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
