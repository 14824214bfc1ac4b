// Package logging provides the structured zap logger used across the relay.
package logging
