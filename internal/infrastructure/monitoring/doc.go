// Package monitoring exposes Prometheus metrics for the relay: HTTP
// traffic, protocol message flow, stream session health, and driver call
// outcomes.
package monitoring
