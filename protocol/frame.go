// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket frame header encoding and in-place frame decoding.
//
// Decoding works directly on the connection buffer: the payload is unmasked
// where it lies and returned as a view, nothing is copied.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
)

var (
	// ErrFrameTooLarge reports a declared payload above MaxFramePayload.
	ErrFrameTooLarge = errors.New("protocol: frame payload exceeds limit")
	// ErrProtocolViolation reports an unknown opcode, a malformed control
	// frame or an out-of-sequence continuation.
	ErrProtocolViolation = errors.New("protocol: websocket protocol violation")
)

// FrameMeta describes one decoded frame. It is recomputed per frame.
type FrameMeta struct {
	Flags     byte // FIN bit plus opcode, as on the wire
	HeaderLen int  // includes the mask key when present
	DataLen   int
}

// Fin reports whether the frame is the last of a message.
func (m FrameMeta) Fin() bool { return m.Flags&FinBit != 0 }

// Opcode returns the 4-bit opcode.
func (m FrameMeta) Opcode() byte { return m.Flags & OpcodeBit }

// EncodeHeader appends the header of a final frame carrying n payload bytes
// to dst. Clients get the mask bit and a fresh random 4-byte key, which
// MaskJustSent later applies to the payload.
func EncodeHeader(dst []byte, n int, op byte, isClient bool) []byte {
	return appendHeader(dst, n, FinBit|op&OpcodeBit, isClient)
}

func appendHeader(dst []byte, n int, b0 byte, isClient bool) []byte {
	var maskBit byte
	if isClient {
		maskBit = MaskBit
	}
	switch {
	case n < 126:
		dst = append(dst, b0, byte(n)|maskBit)
	case n < 65536:
		dst = append(dst, b0, 126|maskBit)
		dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, b0, 127|maskBit)
		dst = binary.BigEndian.AppendUint64(dst, uint64(n))
	}
	if isClient {
		var key [4]byte
		_, _ = rand.Read(key[:])
		dst = append(dst, key[:]...)
	}
	return dst
}

// DecodeFrame decodes the frame at the start of buf. It returns the number
// of bytes the frame occupies, or 0 with a nil error while the frame is not
// fully buffered. A masked payload is unmasked in place, so the payload is
// buf[meta.HeaderLen:n].
func DecodeFrame(buf []byte) (int, FrameMeta, error) {
	var meta FrameMeta
	if len(buf) < 2 {
		return 0, meta, nil
	}
	meta.Flags = buf[0]
	maskLen := 0
	if buf[1]&MaskBit != 0 {
		maskLen = 4
	}
	var size uint64
	switch n := buf[1] & 0x7f; n {
	case 126:
		if len(buf) < 4+maskLen {
			return 0, meta, nil
		}
		meta.HeaderLen = 4 + maskLen
		size = uint64(binary.BigEndian.Uint16(buf[2:]))
	case 127:
		if len(buf) < 10+maskLen {
			return 0, meta, nil
		}
		meta.HeaderLen = 10 + maskLen
		size = binary.BigEndian.Uint64(buf[2:])
	default:
		if len(buf) < 2+maskLen {
			return 0, meta, nil
		}
		meta.HeaderLen = 2 + maskLen
		size = uint64(n)
	}
	if size > MaxFramePayload {
		return 0, FrameMeta{Flags: meta.Flags}, ErrFrameTooLarge
	}
	meta.DataLen = int(size)
	total := meta.HeaderLen + meta.DataLen
	if total > len(buf) {
		return 0, meta, nil
	}
	if maskLen > 0 {
		var key [4]byte
		copy(key[:], buf[meta.HeaderLen-4:meta.HeaderLen])
		Mask(buf[meta.HeaderLen:total], key, 0)
	}
	return total, meta, nil
}
