// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/api"
	"github.com/momentics/hioload-wire/control"
	"github.com/momentics/hioload-wire/http1"
	"github.com/momentics/hioload-wire/pool"
	"github.com/momentics/hioload-wire/protocol"
)

// Conn is one served connection. It is owned by a single goroutine; handlers
// may use it only while they are being called.
type Conn struct {
	srv  *Server
	nc   net.Conn
	cfg  control.Config
	log  zerolog.Logger
	bufs *pool.IOBufPool

	recv *pool.IOBuf
	out  *pool.IOBuf

	state   api.ConnState
	chunks  http1.ChunkDecoder
	ws      *protocol.Conn
	closing bool
}

func (s *Server) newConn(nc net.Conn) *Conn {
	cfg := s.store.Snapshot()
	bufs := s.buffers(cfg.Server)
	c := &Conn{
		srv:   s,
		nc:    nc,
		cfg:   cfg,
		log:   s.log.With().Str("remote", remoteString(nc)).Logger(),
		bufs:  bufs,
		recv:  bufs.Get(),
		out:   bufs.Get(),
		state: api.ConnHTTP,
	}
	c.chunks.MaxSizeLine = cfg.HTTP.MaxChunkSizeLine
	return c
}

func remoteString(nc net.Conn) string {
	if a := nc.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// State returns the connection's protocol state.
func (c *Conn) State() api.ConnState {
	if c.ws != nil {
		return c.ws.State()
	}
	return c.state
}

// Logger returns the connection logger.
func (c *Conn) Logger() zerolog.Logger { return c.log }

// Reply queues an HTTP response. headers must be empty or CRLF-terminated
// header lines.
func (c *Conn) Reply(code int, headers string, body []byte) error {
	return http1.Reply(c.out, code, headers, body)
}

// CloseAfterReply makes the connection close once queued output is flushed.
func (c *Conn) CloseAfterReply() { c.closing = true }

// WebSocket returns the upgraded protocol state machine, or nil.
func (c *Conn) WebSocket() *protocol.Conn { return c.ws }

func (c *Conn) serve() {
	defer c.release()
	c.log.Debug().Msg("connection open")
	for !c.closing {
		if t := c.cfg.Server.IdleTimeout; t > 0 {
			c.nc.SetReadDeadline(time.Now().Add(t))
		}
		want := c.cfg.Server.ReadBuffer
		if lim := c.recv.Limit(); lim > 0 && lim-c.recv.Len() < want {
			want = lim - c.recv.Len()
		}
		tail, err := c.recv.Grow(want)
		if want <= 0 || err != nil {
			c.overflow()
			c.flush()
			return
		}
		n, rerr := c.nc.Read(tail)
		c.recv.Truncate(c.recv.Len() - len(tail) + n)
		if n > 0 {
			c.process()
		}
		if !c.flush() {
			return
		}
		if rerr != nil {
			if errors.Is(rerr, os.ErrDeadlineExceeded) {
				c.log.Debug().Msg("idle timeout")
			} else if !errors.Is(rerr, io.EOF) && !errors.Is(rerr, net.ErrClosed) {
				c.log.Debug().Err(rerr).Msg("read")
			}
			return
		}
	}
}

// process runs the codecs over everything buffered so far.
func (c *Conn) process() {
	for !c.closing {
		if c.ws != nil {
			c.processWS()
			return
		}
		if !c.processHTTP() {
			return
		}
	}
}

// processHTTP handles at most one request and reports whether another one
// may follow in the buffer.
func (c *Conn) processHTTP() bool {
	var m http1.Message
	buf := c.recv.Bytes()
	headLen, err := http1.Parse(buf, &m)
	if err != nil {
		c.fail(400, "malformed request", err)
		return false
	}
	if headLen == 0 {
		if len(buf) > c.cfg.HTTP.MaxHeadSize {
			c.fail(431, "request head too large", nil)
		}
		return false
	}
	if m.IsResponse() {
		c.fail(400, "unexpected response", nil)
		return false
	}

	chunked, err := m.Chunked()
	if err != nil {
		c.fail(400, "bad transfer coding", err)
		return false
	}
	if chunked {
		bodyLen, done, err := c.chunks.Walk(c.recv, headLen, nil)
		if err != nil {
			c.fail(400, "malformed chunked body", err)
			return false
		}
		if !done {
			return false
		}
		// Walk only deletes after the head, so the head views stay valid.
		m.SetBody(c.recv.Bytes(), bodyLen)
	} else {
		if m.BodyLen == http1.LengthUnknown {
			c.fail(411, "length required", nil)
			return false
		}
		if m.MessageLen > c.cfg.Server.MaxBuffer {
			c.fail(413, "body too large", nil)
			return false
		}
		if len(buf) < m.MessageLen {
			return false
		}
	}

	c.srv.metrics.Add(MetricHTTPRequests, 1)
	msgLen := m.MessageLen
	if c.srv.ws != nil && protocol.IsUpgrade(&m) && (c.srv.wsPath == "" || string(m.URI) == c.srv.wsPath) {
		c.upgrade(&m)
		c.recv.Delete(0, msgLen)
		return !c.closing
	}

	keepAlive := wantsKeepAlive(&m)
	if c.srv.http != nil {
		c.srv.http.ServeHTTP1(c, &m)
	} else {
		c.Reply(404, "", nil)
	}
	c.log.Debug().Bytes("method", m.Method).Bytes("uri", m.URI).Msg("request served")
	c.recv.Delete(0, msgLen)
	c.chunks.Reset()
	if !keepAlive {
		c.closing = true
	}
	return !c.closing
}

func (c *Conn) upgrade(m *http1.Message) {
	if err := protocol.ServerHandshake(m, c.out, c.cfg.WebSocket.Subprotocol); err != nil {
		c.fail(400, "bad websocket upgrade", err)
		return
	}
	c.srv.metrics.Add(MetricWSUpgrades, 1)
	c.ws = protocol.NewConn(c.recv, c.out, false, c.srv.ws,
		protocol.WithLogger(c.log),
		protocol.WithMaxMessage(c.cfg.WebSocket.MaxMessage))
	c.log.Debug().Bytes("uri", m.URI).Msg("websocket upgraded")
}

func (c *Conn) processWS() {
	if err := c.ws.Process(); err != nil {
		c.srv.metrics.Add(MetricWSViolations, 1)
		c.closing = true
		return
	}
	if c.ws.Draining() || c.ws.Closed() {
		c.closing = true
	}
}

// fail queues an error reply and closes the connection after flushing.
func (c *Conn) fail(code int, what string, err error) {
	c.srv.metrics.Add(MetricHTTPBadRequest, 1)
	ev := c.log.Warn().Int("status", code)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(what)
	c.Reply(code, "Connection: close\r\n", nil)
	c.closing = true
}

// overflow handles a receive buffer that hit its limit.
func (c *Conn) overflow() {
	if c.ws != nil {
		c.log.Warn().Int("limit", c.recv.Limit()).Msg("websocket message exceeds buffer")
		c.ws.Close(protocol.CloseMessageTooBig, "")
	} else {
		c.fail(413, "request exceeds buffer", nil)
	}
	c.closing = true
}

// flush writes queued output and reports whether the connection stays up.
func (c *Conn) flush() bool {
	if c.out.Len() > 0 {
		if t := c.cfg.Server.IdleTimeout; t > 0 {
			c.nc.SetWriteDeadline(time.Now().Add(t))
		}
		_, err := c.nc.Write(c.out.Bytes())
		c.out.Reset()
		if err != nil {
			c.log.Debug().Err(err).Msg("write")
			return false
		}
	}
	return !c.closing
}

func (c *Conn) release() {
	c.nc.Close()
	if c.ws != nil {
		c.srv.metrics.Merge("ws.", c.ws.GetStats())
	}
	c.state = api.ConnClosed
	c.bufs.Put(c.recv)
	c.bufs.Put(c.out)
	c.recv, c.out = nil, nil
	c.log.Debug().Msg("connection closed")
}

// wantsKeepAlive applies the HTTP/1.x persistence rules to a request.
func wantsKeepAlive(m *http1.Message) bool {
	conn := m.Header("Connection")
	if hasToken(conn, "close") {
		return false
	}
	if bytes.Equal(m.Proto, []byte("HTTP/1.0")) {
		return hasToken(conn, "keep-alive")
	}
	return true
}

func hasToken(v []byte, tok string) bool {
	for len(v) > 0 {
		var part []byte
		if i := bytes.IndexByte(v, ','); i >= 0 {
			part, v = v[:i], v[i+1:]
		} else {
			part, v = v, nil
		}
		if bytes.EqualFold(bytes.TrimSpace(part), []byte(tok)) {
			return true
		}
	}
	return false
}
