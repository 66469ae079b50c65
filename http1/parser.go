// File: http1/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every field of Message is a sub-slice of the buffer handed to Parse. The
// parser never copies and never reads past len(buf); "need more data" is the
// (0, nil) return.

package http1

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// MaxHeaders is the fixed header capacity of a Message. Extra header lines
// are validated but not recorded.
const MaxHeaders = 30

// LengthUnknown marks a body (or message) that extends until the
// connection closes.
const LengthUnknown = -1

var (
	ErrBadRequest        = errors.New("http1: malformed message head")
	ErrBadContentLength  = fmt.Errorf("%w: invalid Content-Length", ErrBadRequest)
	ErrBadTransferCoding = fmt.Errorf("%w: unsupported Transfer-Encoding", ErrBadRequest)
)

// Header is one (name, value) pair; both alias the message buffer.
type Header struct {
	Name  []byte
	Value []byte
}

// Message is a parsed request or response head plus the buffered body view.
// For responses Method holds "HTTP/x.y" and URI holds the status code.
type Message struct {
	Method []byte
	URI    []byte
	Query  []byte
	Proto  []byte
	Head   []byte // request/status line and headers, terminator included
	Body   []byte // buffered part of the body, at most BodyLen bytes

	BodyLen    int // declared body length or LengthUnknown
	MessageLen int // len(Head) + BodyLen, or LengthUnknown

	headers    [MaxHeaders]Header
	numHeaders int
}

// RequestLen scans buf for the blank line ending a message head. It returns
// the offset just past the terminator, 0 if the head is not fully buffered,
// or -1 if buf holds a byte that cannot appear in a head.
func RequestLen(buf []byte) int {
	for i, c := range buf {
		if !headByte(c) {
			return -1
		}
		if c != '\n' || i == 0 {
			continue
		}
		if buf[i-1] == '\n' || (i > 2 && buf[i-1] == '\r' && buf[i-2] == '\n') {
			return i + 1
		}
	}
	return 0
}

func headByte(c byte) bool {
	return c == '\n' || c == '\r' || c == '\t' || c >= ' '
}

// Parse parses the message head at the start of buf into m. It returns the
// head length, 0 when the head is incomplete, or an error wrapping
// ErrBadRequest.
func Parse(buf []byte, m *Message) (int, error) {
	*m = Message{}
	n := RequestLen(buf)
	if n < 0 {
		return 0, ErrBadRequest
	}
	if n == 0 {
		return 0, nil
	}
	head := buf[:n]
	m.Head = head
	m.BodyLen, m.MessageLen = LengthUnknown, LengthUnknown

	i := 0
	m.Method, i = token(head, i)
	i = skipSpaces(head, i)
	m.URI, i = token(head, i)
	i = skipSpaces(head, i)
	isResponse := len(m.Method) > 5 && asciiPrefixFold(m.Method, "HTTP/")

	var ok bool
	if m.Proto, i, ok = toEOL(head, i); !ok {
		return 0, ErrBadRequest
	}
	if !isResponse && len(m.Proto) > 0 && !validProto(m.Proto) {
		return 0, ErrBadRequest
	}
	if q := bytes.IndexByte(m.URI, '?'); q >= 0 {
		m.Query = m.URI[q+1:]
		m.URI = m.URI[:q]
	}
	if len(m.Method) == 0 || len(m.URI) == 0 {
		return 0, ErrBadRequest
	}
	if err := m.parseHeaders(head, i); err != nil {
		return 0, err
	}

	if cl := m.Header("Content-Length"); cl != nil {
		v, err := parseLength(cl)
		if err != nil {
			return 0, err
		}
		m.BodyLen = v
	} else if isResponse {
		if string(m.URI) == "204" {
			m.BodyLen = 0
		}
	} else if !equalFold(m.Method, "PUT") && !equalFold(m.Method, "POST") {
		m.BodyLen = 0
	}

	avail := len(buf) - n
	if m.BodyLen == LengthUnknown {
		m.Body = buf[n:]
	} else {
		if m.BodyLen > maxInt-n {
			return 0, ErrBadContentLength
		}
		m.MessageLen = n + m.BodyLen
		m.Body = buf[n : n+min(m.BodyLen, avail)]
	}
	return n, nil
}

const maxInt = int(^uint(0) >> 1)

func (m *Message) parseHeaders(head []byte, i int) error {
	for i < len(head) {
		if head[i] == '\n' || (head[i] == '\r' && i+1 < len(head) && head[i+1] == '\n') {
			return nil
		}
		start := i
		for i < len(head) && head[i] != ':' {
			n := charLen(head[i:])
			if n == 0 {
				return ErrBadRequest
			}
			i += n
		}
		if i == start || i >= len(head) {
			return ErrBadRequest
		}
		name := head[start:i]
		i = skipBlanks(head, i+1)
		value, next, ok := toEOL(head, i)
		if !ok {
			return ErrBadRequest
		}
		for len(value) > 0 && (value[len(value)-1] == ' ' || value[len(value)-1] == '\t') {
			value = value[:len(value)-1]
		}
		if m.numHeaders < MaxHeaders {
			m.headers[m.numHeaders] = Header{Name: name, Value: value}
			m.numHeaders++
		}
		i = next
	}
	return ErrBadRequest
}

// Headers returns the recorded header lines in wire order.
func (m *Message) Headers() []Header {
	return m.headers[:m.numHeaders]
}

// Header returns the value of the first header called name (ASCII
// case-insensitive), or nil.
func (m *Message) Header(name string) []byte {
	for i := 0; i < m.numHeaders; i++ {
		if equalFold(m.headers[i].Name, name) {
			return m.headers[i].Value
		}
	}
	return nil
}

// IsResponse reports whether the head is a status line.
func (m *Message) IsResponse() bool {
	return len(m.Method) > 5 && asciiPrefixFold(m.Method, "HTTP/")
}

// Status returns the response status code, or 0 for requests.
func (m *Message) Status() int {
	if !m.IsResponse() {
		return 0
	}
	code, err := strconv.Atoi(string(m.URI))
	if err != nil {
		return 0
	}
	return code
}

// Chunked reports whether the body uses chunked transfer coding. Any other
// Transfer-Encoding is rejected.
func (m *Message) Chunked() (bool, error) {
	te := m.Header("Transfer-Encoding")
	if te == nil {
		return false, nil
	}
	if equalFold(te, "chunked") {
		return true, nil
	}
	return false, ErrBadTransferCoding
}

// BodyComplete reports whether the whole declared body is buffered.
func (m *Message) BodyComplete() bool {
	return m.BodyLen != LengthUnknown && len(m.Body) == m.BodyLen
}

// SetBody points Body at a reassembled body of bodyLen bytes that directly
// follows the head in buf, fixing the message length.
func (m *Message) SetBody(buf []byte, bodyLen int) {
	n := len(m.Head)
	m.Body = buf[n : n+bodyLen]
	m.BodyLen = bodyLen
	m.MessageLen = n + bodyLen
}

// token consumes visible characters (no spaces, no controls).
func token(b []byte, i int) ([]byte, int) {
	start := i
	for i < len(b) {
		n := charLen(b[i:])
		if n == 0 {
			break
		}
		i += n
	}
	return b[start:i], i
}

// charLen returns the byte length of the visible character at b[0], or 0 for
// spaces, controls and invalid UTF-8.
func charLen(b []byte) int {
	c := b[0]
	if c > ' ' && c < 0x7f {
		return 1
	}
	if c < utf8.RuneSelf {
		return 0
	}
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError {
		return 0
	}
	return size
}

func skipSpaces(b []byte, i int) int {
	for i < len(b) && b[i] == ' ' {
		i++
	}
	return i
}

func skipBlanks(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return i
}

// toEOL returns the bytes up to the line terminator and the offset after it.
// A CR not followed by LF is rejected.
func toEOL(b []byte, i int) ([]byte, int, bool) {
	start := i
	for i < len(b) && b[i] != '\n' && b[i] != '\r' {
		i++
	}
	if i >= len(b) {
		return nil, i, false
	}
	line := b[start:i]
	if b[i] == '\r' {
		if i+1 >= len(b) || b[i+1] != '\n' {
			return nil, i, false
		}
		i++
	}
	return line, i + 1, true
}

func validProto(p []byte) bool {
	return len(p) == 8 && asciiPrefixFold(p, "HTTP/") &&
		p[5] >= '0' && p[5] <= '9' && p[6] == '.' && p[7] >= '0' && p[7] <= '9'
}

func parseLength(v []byte) (int, error) {
	if len(v) == 0 {
		return 0, ErrBadContentLength
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0, ErrBadContentLength
		}
		if n > (maxInt-int(c-'0'))/10 {
			return 0, ErrBadContentLength
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 0x20
	}
	return c
}

func equalFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	return asciiPrefixFold(b, s)
}

func asciiPrefixFold(b []byte, prefix string) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if lower(b[i]) != lower(prefix[i]) {
			return false
		}
	}
	return true
}
