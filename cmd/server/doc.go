// Package main is the entry point for the cartbridge server.
//
// The server bridges a protocol client to a retail shopping session: it
// accepts JSON-RPC envelopes over HTTP, executes shopping operations
// against the site through a cookie-backed driver, and pushes responses
// over a long-lived event stream.
//
// Configuration comes from environment variables (12-factor); see the
// config package for the full set. Notable:
//
//	PORT               Listen port (default 8080)
//	AUTH_TOKEN         Bearer token; empty disables auth
//	COOKIE_FILE        Login session persistence path
//	AMAZON_BASE_URL    Site base URL
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (streams closed, cookies saved)
package main
