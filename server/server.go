// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server drives the codecs from a net.Listener: one goroutine per connection
// reads into a pooled IOBuf, runs the HTTP pipeline until an upgrade and the
// WebSocket state machine after it, and flushes the outbound buffer.

package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/control"
	"github.com/momentics/hioload-wire/pool"
	"github.com/momentics/hioload-wire/protocol"
)

// Server accepts connections and serves HTTP/1.1 and WebSocket on them.
type Server struct {
	store   *control.ConfigStore
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes
	log     zerolog.Logger

	http   HTTPHandler
	ws     protocol.Handler
	wsPath string

	mu     sync.Mutex
	ln     net.Listener
	conns  map[*Conn]struct{}
	bufs   *pool.IOBufPool
	bufCfg control.ServerConfig
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New builds a Server reading its limits from store. Limits are taken from
// the current snapshot whenever a connection is accepted, so reloads apply to
// new connections.
func New(store *control.ConfigStore, opts ...Option) *Server {
	if store == nil {
		store = control.NewConfigStore(control.DefaultConfig())
	}
	s := &Server{
		store: store,
		log:   zerolog.Nop(),
		conns: make(map[*Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetricsRegistry()
	}
	if s.probes == nil {
		s.probes = control.NewDebugProbes()
	}
	s.probes.RegisterProbe("server.connections", func() any { return s.ActiveConns() })
	s.probes.RegisterProbe("server.addr", func() any {
		if a := s.Addr(); a != nil {
			return a.String()
		}
		return ""
	})
	control.RegisterPlatformProbes(s.probes)
	return s
}

// Metrics returns the server's metrics registry.
func (s *Server) Metrics() *control.MetricsRegistry { return s.metrics }

// Probes returns the server's debug probes.
func (s *Server) Probes() *control.DebugProbes { return s.probes }

// Addr returns the listener address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConns returns the number of connections being served.
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ListenAndServe listens on the configured address and serves until ctx is
// done or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.store.Snapshot().Server.Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done or Shutdown is called.
// It always returns a non-nil error; ErrServerClosed after a shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-stop:
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				s.wg.Wait()
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn().Err(err).Msg("accept")
				continue
			}
			return err
		}
		s.metrics.Add(MetricConnAccepted, 1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(nc)
		}()
	}
}

// ServeConn serves one already accepted connection and blocks until it is
// closed. The connection is closed on return.
func (s *Server) ServeConn(nc net.Conn) {
	c := s.newConn(nc)
	if !s.track(c, true) {
		nc.Close()
		return
	}
	defer s.track(c, false)
	c.serve()
}

// Shutdown stops accepting, closes every live connection and waits for
// their goroutines. It is safe to call more than once.
func (s *Server) Shutdown() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		c.nc.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info().Msg("server stopped")
	return err
}

func (s *Server) track(c *Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closed.Load() {
			return false
		}
		s.conns[c] = struct{}{}
		s.metrics.Add(MetricConnActive, 1)
		return true
	}
	delete(s.conns, c)
	s.metrics.Add(MetricConnActive, -1)
	return true
}

// buffers returns the IOBuf pool for the current limits, rebuilding it when
// a reload changed them.
func (s *Server) buffers(sc control.ServerConfig) *pool.IOBufPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bufs == nil || s.bufCfg.ReadBuffer != sc.ReadBuffer || s.bufCfg.MaxBuffer != sc.MaxBuffer {
		s.bufs = pool.NewIOBufPool(sc.ReadBuffer, sc.ReadBuffer, sc.MaxBuffer, 4*sc.ReadBuffer)
		s.bufCfg = sc
	}
	return s.bufs
}
