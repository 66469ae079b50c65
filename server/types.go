// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"

	"github.com/momentics/hioload-wire/http1"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

// HTTPHandler serves one complete HTTP request. m and its views alias the
// connection's receive buffer and are valid only during the call; replies go
// through c.Reply.
type HTTPHandler interface {
	ServeHTTP1(c *Conn, m *http1.Message)
}

// HTTPHandlerFunc adapts a function to HTTPHandler.
type HTTPHandlerFunc func(c *Conn, m *http1.Message)

// ServeHTTP1 calls f(c, m).
func (f HTTPHandlerFunc) ServeHTTP1(c *Conn, m *http1.Message) { f(c, m) }

// Metric keys maintained by the server. Per-connection WebSocket counters
// are merged under the "ws." prefix when a connection ends.
const (
	MetricConnAccepted   = "conn.accepted"
	MetricConnActive     = "conn.active"
	MetricHTTPRequests   = "http.requests"
	MetricHTTPBadRequest = "http.bad_requests"
	MetricWSUpgrades     = "ws.upgrades"
	MetricWSViolations   = "ws.protocol_violations"
)
