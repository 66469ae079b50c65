// File: protocol/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn runs the receive side of one WebSocket session over caller-owned
// buffers: frames are decoded in place from Recv, fragmented messages are
// reassembled in Recv itself, replies are appended to Out. Conn performs no
// I/O and holds no locks; it is driven by the single goroutine that owns the
// socket.

package protocol

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/api"
	"github.com/momentics/hioload-wire/pool"
)

// Event tells a Handler what it is looking at.
type Event int

const (
	// EventMessage carries a complete text or binary message.
	EventMessage Event = iota
	// EventControl carries a ping, pong or close frame.
	EventControl
)

func (e Event) String() string {
	if e == EventControl {
		return "control"
	}
	return "message"
}

// Message is a delivered frame or reassembled message. Data aliases the
// receive buffer and is valid only for the duration of the handler call.
type Message struct {
	Op   byte
	Data []byte
}

// Handler receives messages and control frames from Process.
type Handler interface {
	HandleWS(c *Conn, ev Event, msg Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Conn, ev Event, msg Message)

// HandleWS calls f.
func (f HandlerFunc) HandleWS(c *Conn, ev Event, msg Message) { f(c, ev, msg) }

// ConnOption customizes a Conn.
type ConnOption func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(l zerolog.Logger) ConnOption {
	return func(c *Conn) { c.log = l }
}

// WithMaxMessage bounds the size of a reassembled fragmented message.
func WithMaxMessage(n int) ConnOption {
	return func(c *Conn) { c.maxMessage = n }
}

// Conn is the per-connection frame state machine.
type Conn struct {
	Recv     *pool.IOBuf
	Out      *pool.IOBuf
	IsClient bool

	handler    Handler
	log        zerolog.Logger
	maxMessage int
	state      api.ConnState

	// fragmentation scratch: payload bytes accumulated at the head of Recv
	// and the opcode of the first fragment
	fragging bool
	fragOff  int
	fragOp   byte

	bytesReceived  atomic.Int64
	bytesSent      atomic.Int64
	framesReceived atomic.Int64
	framesSent     atomic.Int64
	messages       atomic.Int64
}

// NewConn creates a Conn in the open state.
func NewConn(recv, out *pool.IOBuf, isClient bool, h Handler, opts ...ConnOption) *Conn {
	c := &Conn{
		Recv:       recv,
		Out:        out,
		IsClient:   isClient,
		handler:    h,
		log:        zerolog.Nop(),
		maxMessage: MaxFramePayload,
		state:      api.ConnWebSocket,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the lifecycle state.
func (c *Conn) State() api.ConnState { return c.state }

// Draining reports whether a close handshake has been seen or started; the
// owner should flush Out and then close the socket.
func (c *Conn) Draining() bool { return c.state == api.ConnDraining }

// Closed reports whether the connection hit a fatal error.
func (c *Conn) Closed() bool { return c.state == api.ConnClosed }

// Process consumes every complete frame buffered in Recv. It returns nil when
// it needs more bytes, and a protocol error (after queueing a 1002/1009 close
// frame) when the peer broke the protocol; the owner must then tear the
// connection down.
func (c *Conn) Process() error {
	for c.state == api.ConnWebSocket {
		raw := c.Recv.Bytes()[c.fragOff:]
		n, meta, err := DecodeFrame(raw)
		if err != nil {
			return c.fail(CloseMessageTooBig, api.ErrCodeResourceLimit, "frame too large", err)
		}
		if n == 0 {
			return nil
		}
		c.framesReceived.Add(1)
		c.bytesReceived.Add(int64(n))

		op := meta.Opcode()
		payload := raw[meta.HeaderLen:n]
		// Client frames must be masked and server frames must not be.
		if (raw[1]&MaskBit != 0) == c.IsClient {
			return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "mask bit mismatch", ErrProtocolViolation)
		}
		if !minimalLength(raw[1]&0x7f, meta.DataLen) {
			return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "non-minimal payload length", ErrProtocolViolation)
		}
		if meta.Flags&RsvBits != 0 {
			return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "reserved bits set", ErrProtocolViolation)
		}

		if IsControl(op) {
			if err := c.control(meta, payload); err != nil {
				return err
			}
			c.Recv.Delete(c.fragOff, n)
			continue
		}

		switch {
		case op != OpcodeContinuation && op != OpcodeText && op != OpcodeBinary:
			return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "unknown opcode", ErrProtocolViolation)
		case op == OpcodeContinuation && !c.fragging:
			return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "unexpected continuation", ErrProtocolViolation)
		case op != OpcodeContinuation && c.fragging:
			return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "interleaved data frame", ErrProtocolViolation)
		}

		if meta.Fin() && op != OpcodeContinuation {
			c.deliver(EventMessage, Message{Op: op, Data: payload})
			c.Recv.Delete(0, n)
			continue
		}

		if op != OpcodeContinuation {
			c.fragging = true
			c.fragOp = op
		}
		if c.fragOff+meta.DataLen > c.maxMessage {
			return c.fail(CloseMessageTooBig, api.ErrCodeResourceLimit, "fragmented message too large", ErrFrameTooLarge)
		}
		c.Recv.Delete(c.fragOff, meta.HeaderLen)
		c.fragOff += meta.DataLen
		if meta.Fin() {
			c.deliver(EventMessage, Message{Op: c.fragOp, Data: c.Recv.Bytes()[:c.fragOff]})
			c.Recv.Delete(0, c.fragOff)
			c.fragOff, c.fragOp, c.fragging = 0, 0, false
		}
	}
	return nil
}

func minimalLength(field byte, n int) bool {
	switch field {
	case 126:
		return n >= 126
	case 127:
		return n > 0xFFFF
	}
	return true
}

func (c *Conn) control(meta FrameMeta, payload []byte) error {
	op := meta.Opcode()
	if !meta.Fin() || len(payload) > MaxControlPayloadLen {
		return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "malformed control frame", ErrProtocolViolation)
	}
	switch op {
	case OpcodePing:
		if _, err := c.Send(OpcodePong, payload); err != nil {
			return err
		}
		c.deliver(EventControl, Message{Op: op, Data: payload})
	case OpcodePong:
		c.deliver(EventControl, Message{Op: op, Data: payload})
	case OpcodeClose:
		c.deliver(EventControl, Message{Op: op, Data: payload})
		if _, err := c.Send(OpcodeClose, nil); err != nil {
			return err
		}
		c.state = api.ConnDraining
		c.log.Debug().Int("payload", len(payload)).Msg("close received, draining")
	default:
		return c.fail(CloseProtocolError, api.ErrCodeProtocolViolation, "unknown opcode", ErrProtocolViolation)
	}
	return nil
}

func (c *Conn) deliver(ev Event, msg Message) {
	if ev == EventMessage {
		c.messages.Add(1)
	}
	if c.handler != nil {
		c.handler.HandleWS(c, ev, msg)
	}
}

func (c *Conn) fail(closeCode uint16, code api.ErrorCode, what string, cause error) error {
	var p [2]byte
	binary.BigEndian.PutUint16(p[:], closeCode)
	_, _ = c.Send(OpcodeClose, p[:])
	c.state = api.ConnClosed
	err := api.Wrap(code, what, cause).WithContext("close_code", closeCode)
	c.log.Warn().Err(err).Msg("websocket connection failed")
	return err
}

// Send appends a single final frame to Out. Client frames are masked.
func (c *Conn) Send(op byte, data []byte) (int, error) {
	return c.send(FinBit|op&OpcodeBit, data)
}

// SendFragment appends one frame of a fragmented message. The first call
// carries the message opcode, the following ones OpcodeContinuation; the last
// one sets fin.
func (c *Conn) SendFragment(op byte, data []byte, fin bool) (int, error) {
	b0 := op & OpcodeBit
	if fin {
		b0 |= FinBit
	}
	return c.send(b0, data)
}

func (c *Conn) send(b0 byte, data []byte) (int, error) {
	if c.state == api.ConnClosed {
		return 0, api.ErrConnClosed
	}
	var hdr [MaxFrameHeaderLen]byte
	h := appendHeader(hdr[:0], len(data), b0, c.IsClient)
	if err := c.Out.Resize(c.Out.Len() + len(h) + len(data)); err != nil {
		c.log.Warn().Err(err).Int("len", len(data)).Msg("send buffer full")
		return 0, err
	}
	_ = c.Out.Append(h...)
	_ = c.Out.Append(data...)
	if c.IsClient {
		MaskJustSent(c.Out.Bytes(), len(data))
	}
	c.framesSent.Add(1)
	c.bytesSent.Add(int64(len(h) + len(data)))
	return len(h) + len(data), nil
}

// Close starts the closing handshake with the given status code and reason.
func (c *Conn) Close(code uint16, reason string) error {
	if c.state != api.ConnWebSocket {
		return nil
	}
	p := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(p, code)
	p = append(p, reason...)
	if len(p) > MaxControlPayloadLen {
		p = p[:MaxControlPayloadLen]
	}
	if _, err := c.Send(OpcodeClose, p); err != nil {
		return err
	}
	c.state = api.ConnDraining
	return nil
}

// CloseCode extracts the status code from a close frame payload, or
// CloseNoStatusRcvd when it carries none.
func CloseCode(payload []byte) uint16 {
	if len(payload) < 2 {
		return CloseNoStatusRcvd
	}
	return binary.BigEndian.Uint16(payload)
}

// GetStats returns a snapshot of connection statistics for metrics reporting.
func (c *Conn) GetStats() map[string]int64 {
	return map[string]int64{
		"bytes_received":  c.bytesReceived.Load(),
		"bytes_sent":      c.bytesSent.Load(),
		"frames_received": c.framesReceived.Load(),
		"frames_sent":     c.framesSent.Load(),
		"messages":        c.messages.Load(),
	}
}
