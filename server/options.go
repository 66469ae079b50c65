// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/control"
	"github.com/momentics/hioload-wire/protocol"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the server logger; connections log through children of it.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithHTTPHandler sets the handler for plain HTTP requests. Without one every
// request gets 404.
func WithHTTPHandler(h HTTPHandler) Option {
	return func(s *Server) { s.http = h }
}

// WithWebSocket accepts upgrade requests for path ("" for any path) and hands
// the upgraded connection's messages to h.
func WithWebSocket(path string, h protocol.Handler) Option {
	return func(s *Server) {
		s.wsPath = path
		s.ws = h
	}
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(s *Server) { s.metrics = m }
}

// WithProbes shares a debug probe registry with the caller.
func WithProbes(p *control.DebugProbes) Option {
	return func(s *Server) { s.probes = p }
}
