// File: client/client.go
// Package client provides a JSON-RPC over WebSocket client.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The client performs the RFC 6455 handshake over bare TCP (with or without
// a ws:// scheme), runs the frame state machine on a reader goroutine, and
// correlates responses with outstanding calls. Requests sent by the server
// are dispatched through the client's own Registry.

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/api"
	"github.com/momentics/hioload-wire/http1"
	"github.com/momentics/hioload-wire/jsonq"
	"github.com/momentics/hioload-wire/pool"
	"github.com/momentics/hioload-wire/protocol"
	"github.com/momentics/hioload-wire/rpc"
)

// RPCError is a JSON-RPC error object returned by the server.
type RPCError struct {
	Code    int
	Message string
	Raw     []byte
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func parseRPCError(obj []byte) *RPCError {
	e := &RPCError{Raw: append([]byte(nil), obj...)}
	if code, ok := jsonq.GetLong(obj, "$.code"); ok {
		e.Code = int(code)
	}
	e.Message, _ = jsonq.GetStr(obj, "$.message")
	return e
}

// ConnEventHandler receives lifecycle callbacks.
type ConnEventHandler interface {
	OnClose()
	OnError(err error)
}

// Config holds the client parameters.
type Config struct {
	Addr              string        // ws://host:port/path or bare host:port
	ReadBuffer        int           // bytes per socket read
	MaxBuffer         int           // receive/send buffer limit
	DialTimeout       time.Duration // TCP connect plus handshake
	CallTimeout       time.Duration // outstanding calls expire after this (0 = never)
	HeartbeatInterval time.Duration // send ping every interval (0 = disabled)
	Subprotocol       string        // offered in Sec-WebSocket-Protocol when set
	Logger            zerolog.Logger
}

// DefaultConfig returns a Config for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:        addr,
		ReadBuffer:  4096,
		MaxBuffer:   1 << 20,
		DialTimeout: 10 * time.Second,
		CallTimeout: 30 * time.Second,
		Logger:      zerolog.Nop(),
	}
}

// Client is a connected JSON-RPC client. It is safe for concurrent use.
type Client struct {
	cfg     Config
	nc      net.Conn
	log     zerolog.Logger
	reg     *rpc.Registry
	pending *rpc.Pending

	mu sync.Mutex // guards ws and the connection write side
	ws *protocol.Conn

	handlers  []ConnEventHandler
	closeOnce sync.Once
	closeCh   chan struct{}
	closed    atomic.Bool
	err       atomic.Value // error that ended the reader
}

// Dial connects to cfg.Addr and completes the WebSocket handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = 4096
	}
	host, path, err := splitAddr(cfg.Addr)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		nc.SetDeadline(dl)
	}
	c, err := NewClient(nc, host, path, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// NewClient performs the handshake on an established connection and starts
// the reader. The connection belongs to the client afterwards.
func NewClient(nc net.Conn, host, path string, cfg Config) (*Client, error) {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = 4096
	}
	recv := pool.NewIOBuf(cfg.ReadBuffer, cfg.ReadBuffer, cfg.MaxBuffer)
	out := pool.NewIOBuf(cfg.ReadBuffer, cfg.ReadBuffer, cfg.MaxBuffer)
	if err := handshake(nc, recv, out, host, path, cfg.Subprotocol, cfg.ReadBuffer); err != nil {
		return nil, err
	}
	nc.SetDeadline(time.Time{})

	c := &Client{
		cfg:     cfg,
		nc:      nc,
		log:     cfg.Logger,
		pending: rpc.NewPending(),
		closeCh: make(chan struct{}),
	}
	c.reg = rpc.NewRegistry(rpc.WithLogger(c.log))
	c.reg.Add("", c.pending.Handle, nil)
	c.ws = protocol.NewConn(recv, out, true, protocol.HandlerFunc(c.handleWS),
		protocol.WithLogger(c.log), protocol.WithMaxMessage(maxMessage(cfg)))

	go c.recvLoop()
	if cfg.CallTimeout > 0 {
		go c.expireLoop()
	}
	if cfg.HeartbeatInterval > 0 {
		go c.heartbeatLoop()
	}
	return c, nil
}

func maxMessage(cfg Config) int {
	if cfg.MaxBuffer > 0 {
		return cfg.MaxBuffer
	}
	return protocol.MaxFramePayload
}

// splitAddr accepts ws://host/path or bare host:port.
func splitAddr(addr string) (host, path string, err error) {
	if !strings.Contains(addr, "://") {
		return addr, "/", nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "ws" {
		return "", "", api.Wrap(api.ErrCodeNotSupported, "websocket scheme", api.ErrNotSupported).
			WithContext("scheme", u.Scheme)
	}
	return u.Host, u.RequestURI(), nil
}

// handshake sends the upgrade request and reads the 101 reply. Frames that
// arrive in the same read stay in recv.
func handshake(nc net.Conn, recv, out *pool.IOBuf, host, path, subprotocol string, chunk int) error {
	key := protocol.NewClientKey()
	var extra string
	if subprotocol != "" {
		extra = "Sec-WebSocket-Protocol: " + subprotocol + "\r\n"
	}
	if err := protocol.ClientHandshakeRequest(out, host, path, key, extra); err != nil {
		return err
	}
	if _, err := nc.Write(out.Bytes()); err != nil {
		return err
	}
	out.Reset()
	for {
		var m http1.Message
		n, err := http1.Parse(recv.Bytes(), &m)
		if err != nil {
			return fmt.Errorf("handshake response: %w", err)
		}
		if n > 0 {
			if err := protocol.CheckHandshakeResponse(&m, key, subprotocol); err != nil {
				return fmt.Errorf("handshake failed: status %d: %w", m.Status(), err)
			}
			recv.Delete(0, n)
			return nil
		}
		tail, err := recv.Grow(chunk)
		if err != nil {
			return err
		}
		k, rerr := nc.Read(tail)
		recv.Truncate(recv.Len() - len(tail) + k)
		if rerr != nil {
			return fmt.Errorf("handshake read: %w", rerr)
		}
	}
}

// Registry returns the registry serving requests initiated by the server.
// Register handlers on it before the server starts calling.
func (c *Client) Registry() *rpc.Registry { return c.reg }

// RegisterHandler adds a lifecycle event handler.
func (c *Client) RegisterHandler(h ConnEventHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.mu.Unlock()
}

// Call sends a request and waits for its result. A JSON-RPC error reply is
// returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params []byte) ([]byte, error) {
	type answer struct {
		result []byte
		err    error
	}
	ch := make(chan answer, 1)
	_, err := c.pending.Call(lockedWriter{c}, method, params, func(result, errObj []byte, err error) {
		switch {
		case err != nil:
			ch <- answer{err: err}
		case errObj != nil:
			ch <- answer{err: parseRPCError(errObj)}
		default:
			ch <- answer{result: append([]byte(nil), result...)}
		}
	})
	if err != nil {
		return nil, err
	}
	select {
	case a := <-ch:
		return a.result, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeCh:
		return nil, c.closeErr()
	}
}

// Notify sends a request that expects no answer.
func (c *Client) Notify(method string, params []byte) error {
	return rpc.Notify(lockedWriter{c}, method, params)
}

// Pending returns the number of unanswered calls.
func (c *Client) Pending() int { return c.pending.Len() }

// Close sends a close frame and tears the connection down; idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	if err := c.ws.Close(protocol.CloseNormalClosure, ""); err == nil {
		c.flushLocked()
	}
	c.mu.Unlock()
	return c.shutdown(nil)
}

func (c *Client) shutdown(err error) error {
	var cerr error
	c.closeOnce.Do(func() {
		if err != nil {
			c.err.Store(err)
		}
		close(c.closeCh)
		cerr = c.nc.Close()
		c.mu.Lock()
		handlers := append([]ConnEventHandler(nil), c.handlers...)
		c.mu.Unlock()
		for _, h := range handlers {
			if err != nil {
				h.OnError(err)
			}
			h.OnClose()
		}
	})
	return cerr
}

func (c *Client) closeErr() error {
	if err, ok := c.err.Load().(error); ok {
		return err
	}
	return api.ErrConnClosed
}

// handleWS runs on the reader goroutine with c.mu held.
func (c *Client) handleWS(ws *protocol.Conn, ev protocol.Event, msg protocol.Message) {
	if ev != protocol.EventMessage || msg.Op != protocol.OpcodeText {
		return
	}
	c.reg.Process(msg.Data, wsWriter{ws})
}

func (c *Client) recvLoop() {
	buf := make([]byte, c.cfg.ReadBuffer)
	// Frames that arrived with the handshake reply.
	if err := c.process(nil); err != nil {
		c.shutdown(err)
		return
	}
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			if perr := c.process(buf[:n]); perr != nil {
				if errors.Is(perr, api.ErrConnClosed) {
					perr = nil // peer closed cleanly
				}
				c.shutdown(perr)
				return
			}
		}
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				c.shutdown(nil)
			} else {
				c.log.Debug().Err(err).Msg("client read")
				c.shutdown(err)
			}
			return
		}
	}
}

func (c *Client) process(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.Recv.Append(p...); err != nil {
		return err
	}
	perr := c.ws.Process()
	ferr := c.flushLocked()
	if perr != nil {
		return perr
	}
	if c.ws.Draining() {
		return api.ErrConnClosed
	}
	return ferr
}

func (c *Client) flushLocked() error {
	if c.ws.Out.Len() == 0 {
		return nil
	}
	_, err := c.nc.Write(c.ws.Out.Bytes())
	c.ws.Out.Reset()
	return err
}

// expireLoop fails calls that outlived CallTimeout.
func (c *Client) expireLoop() {
	ticker := time.NewTicker(c.cfg.CallTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := c.pending.Expire(c.cfg.CallTimeout); n > 0 {
				c.log.Warn().Int("calls", n).Msg("rpc calls timed out")
			}
		case <-c.closeCh:
			return
		}
	}
}

// heartbeatLoop sends ping frames at the configured interval.
func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if _, err := c.ws.Send(protocol.OpcodePing, nil); err == nil {
				c.flushLocked()
			}
			c.mu.Unlock()
		case <-c.closeCh:
			return
		}
	}
}

// lockedWriter sends each Write as one text message from outside the reader.
type lockedWriter struct{ c *Client }

func (w lockedWriter) Write(p []byte) (int, error) {
	if w.c.closed.Load() {
		return 0, api.ErrConnClosed
	}
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if _, err := w.c.ws.Send(protocol.OpcodeText, p); err != nil {
		return 0, err
	}
	if err := w.c.flushLocked(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// wsWriter replies from inside the reader, where c.mu is already held.
type wsWriter struct{ ws *protocol.Conn }

func (w wsWriter) Write(p []byte) (int, error) {
	if _, err := w.ws.Send(protocol.OpcodeText, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
