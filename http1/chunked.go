// File: http1/chunked.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-place chunked transfer decoding. Chunks are delivered as they arrive and
// the framing is stripped from the connection buffer once the terminal
// zero-size chunk is seen.

package http1

import (
	"bytes"
	"errors"

	"github.com/momentics/hioload-wire/pool"
)

// DefaultMaxChunkSizeLine bounds a chunk-size line (size plus extensions)
// that has not reached its LF yet.
const DefaultMaxChunkSizeLine = 256

var ErrMalformedChunk = errors.New("http1: malformed chunk")

// ChunkLength inspects the chunk at the start of buf. On success total is the
// full chunk length including framing and the data lives at
// buf[dataOff:dataOff+dataLen]. total == 0 with a nil error means the chunk
// is not fully buffered.
func ChunkLength(buf []byte) (total, dataOff, dataLen int, err error) {
	return chunkLength(buf, DefaultMaxChunkSizeLine)
}

func chunkLength(buf []byte, maxLine int) (total, dataOff, dataLen int, err error) {
	window := buf
	if len(window) > maxLine+1 {
		window = window[:maxLine+1]
	}
	lf := bytes.IndexByte(window, '\n')
	if lf < 0 {
		if len(buf) > maxLine {
			return 0, 0, 0, ErrMalformedChunk
		}
		return 0, 0, 0, nil
	}
	line := buf[:lf]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	size, digits := 0, 0
	for digits < len(line) {
		v, ok := hexVal(line[digits])
		if !ok {
			break
		}
		if digits == 15 {
			return 0, 0, 0, ErrMalformedChunk
		}
		size = size<<4 | v
		digits++
	}
	if digits == 0 {
		return 0, 0, 0, ErrMalformedChunk
	}
	if rest := line[digits:]; len(rest) > 0 && rest[0] != ';' && rest[0] != ' ' && rest[0] != '\t' {
		return 0, 0, 0, ErrMalformedChunk
	}

	dataOff = lf + 1
	end := dataOff + size
	if end >= len(buf) {
		return 0, 0, 0, nil
	}
	switch buf[end] {
	case '\n':
		return end + 1, dataOff, size, nil
	case '\r':
		if end+1 >= len(buf) {
			return 0, 0, 0, nil
		}
		if buf[end+1] == '\n' {
			return end + 2, dataOff, size, nil
		}
	}
	return 0, 0, 0, ErrMalformedChunk
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// ChunkFunc receives the data of one chunk, aliasing buf. It may delete the
// chunk data from buf to stream the body; the walker notices the length
// change, drops the rest of that chunk's framing and continues at the same
// offset.
type ChunkFunc func(buf *pool.IOBuf, chunk []byte)

// ChunkDecoder walks the chunked body of one message. It remembers how far it
// got so a chunk is never delivered twice across partial reads. Reset it (or
// use a fresh value) for every message.
type ChunkDecoder struct {
	MaxSizeLine int

	off int
}

// Reset forgets the walk position.
func (d *ChunkDecoder) Reset() { d.off = 0 }

// Walk delivers every newly complete chunk of the body starting at headLen in
// buf. When the zero-size chunk has been seen it compacts the data of all
// chunks still in the buffer to directly follow the head, removes the framing
// and returns done with the reassembled body length.
func (d *ChunkDecoder) Walk(buf *pool.IOBuf, headLen int, fn ChunkFunc) (bodyLen int, done bool, err error) {
	maxLine := d.MaxSizeLine
	if maxLine <= 0 {
		maxLine = DefaultMaxChunkSizeLine
	}
	for headLen+d.off < buf.Len() {
		body := buf.Bytes()[headLen:]
		total, dOff, dLen, err := chunkLength(body[d.off:], maxLine)
		if err != nil {
			return 0, false, err
		}
		if total == 0 {
			return 0, false, nil
		}
		memo := buf.Len()
		if fn != nil {
			fn(buf, body[d.off+dOff:d.off+dOff+dLen])
		}
		if removed := memo - buf.Len(); removed > 0 {
			if rest := total - removed; rest > 0 {
				buf.Delete(headLen+d.off, rest)
			}
		} else {
			d.off += total
		}
		if dLen == 0 {
			bodyLen = compactChunks(buf, headLen, maxLine)
			d.off = 0
			return bodyLen, true, nil
		}
	}
	return 0, false, nil
}

// compactChunks moves chunk data over its framing and deletes the leftover
// bytes, up to and including the terminal chunk.
func compactChunks(buf *pool.IOBuf, headLen, maxLine int) int {
	body := buf.Bytes()[headLen:]
	off, n := 0, 0
	for off < len(body) {
		total, dOff, dLen, err := chunkLength(body[off:], maxLine)
		if err != nil || total == 0 {
			break
		}
		copy(body[n:], body[off+dOff:off+dOff+dLen])
		n += dLen
		off += total
		if dLen == 0 {
			break
		}
	}
	buf.Delete(headLen+n, off-n)
	return n
}
