// File: pool/iobuf.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// IOBuf is the growable, connection-owned byte buffer every codec view points
// into. Views handed out by parsers are sub-slices of Bytes(); they stay valid
// until the buffer is mutated at a lower offset (Delete) or reallocated (growth).

package pool

import (
	"github.com/momentics/hioload-wire/api"
)

// DefaultIOBufAlign is the growth granularity used when none is given.
const DefaultIOBufAlign = 2048

// IOBuf is a growable byte buffer with delete-range support.
type IOBuf struct {
	buf   []byte
	align int // growth granularity
	limit int // maximum length, 0 means unbounded
}

// NewIOBuf creates a buffer with the initial capacity, growth alignment and
// maximum size. Zero align selects DefaultIOBufAlign; zero limit is unbounded.
func NewIOBuf(capacity, align, limit int) *IOBuf {
	if align <= 0 {
		align = DefaultIOBufAlign
	}
	return &IOBuf{
		buf:   make([]byte, 0, capacity),
		align: align,
		limit: limit,
	}
}

// Bytes returns the buffered data. The slice aliases the buffer.
func (b *IOBuf) Bytes() []byte { return b.buf }

// Len returns the number of buffered bytes.
func (b *IOBuf) Len() int { return len(b.buf) }

// Cap returns the current capacity.
func (b *IOBuf) Cap() int { return cap(b.buf) }

// Limit returns the configured maximum size (0 = unbounded).
func (b *IOBuf) Limit() int { return b.limit }

// Resize makes sure the buffer can hold n bytes without reallocation.
// Growth is rounded up to the alignment. Exceeding the limit fails with
// api.ErrResourceExhausted and leaves the buffer untouched.
func (b *IOBuf) Resize(n int) error {
	if n <= cap(b.buf) {
		return nil
	}
	if b.limit > 0 && n > b.limit {
		return api.Wrap(api.ErrCodeResourceExhausted, "iobuf resize", api.ErrResourceExhausted).
			WithContext("want", n).WithContext("limit", b.limit)
	}
	size := (n + b.align - 1) / b.align * b.align
	if b.limit > 0 && size > b.limit {
		size = b.limit
	}
	nb := make([]byte, len(b.buf), size)
	copy(nb, b.buf)
	b.buf = nb
	return nil
}

// Append copies p to the end of the buffer.
func (b *IOBuf) Append(p ...byte) error {
	if err := b.Resize(len(b.buf) + len(p)); err != nil {
		return err
	}
	b.buf = append(b.buf, p...)
	return nil
}

// AppendString copies s to the end of the buffer.
func (b *IOBuf) AppendString(s string) error {
	if err := b.Resize(len(b.buf) + len(s)); err != nil {
		return err
	}
	b.buf = append(b.buf, s...)
	return nil
}

// Write implements io.Writer on top of Append.
func (b *IOBuf) Write(p []byte) (int, error) {
	if err := b.Append(p...); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Insert copies p into the buffer at offset off, shifting the tail right.
func (b *IOBuf) Insert(off int, p []byte) error {
	if off < 0 || off > len(b.buf) {
		return api.ErrInvalidArgument
	}
	if err := b.Resize(len(b.buf) + len(p)); err != nil {
		return err
	}
	n := len(b.buf)
	b.buf = b.buf[:n+len(p)]
	copy(b.buf[off+len(p):], b.buf[off:n])
	copy(b.buf[off:], p)
	return nil
}

// Delete removes n bytes starting at off, shifting the tail left.
// It returns the number of bytes actually removed.
func (b *IOBuf) Delete(off, n int) int {
	if off < 0 || off >= len(b.buf) || n <= 0 {
		return 0
	}
	if off+n > len(b.buf) {
		n = len(b.buf) - off
	}
	copy(b.buf[off:], b.buf[off+n:])
	b.buf = b.buf[:len(b.buf)-n]
	return n
}

// Truncate shortens the buffer to n bytes. Larger n is a no-op.
func (b *IOBuf) Truncate(n int) {
	if n >= 0 && n < len(b.buf) {
		b.buf = b.buf[:n]
	}
}

// Grow extends the length by n bytes and returns the fresh tail for the caller
// to fill, e.g. straight from a socket read.
func (b *IOBuf) Grow(n int) ([]byte, error) {
	if err := b.Resize(len(b.buf) + n); err != nil {
		return nil, err
	}
	start := len(b.buf)
	b.buf = b.buf[:start+n]
	return b.buf[start:], nil
}

// Reset empties the buffer while keeping its storage.
func (b *IOBuf) Reset() {
	b.buf = b.buf[:0]
}
