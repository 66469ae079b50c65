// File: jsonq/scan.go
// Package jsonq implements a single-pass JSON path query engine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Get answers "where is the value at path P" over a JSON text without building
// a tree. The nesting stack is a fixed array, so MaxDepth is a hard bound that
// does not depend on goroutine stack size.

package jsonq

import (
	"errors"
)

// MaxDepth bounds object/array nesting.
const MaxDepth = 30

var (
	ErrTooDeep  = errors.New("jsonq: nesting exceeds max depth")
	ErrInvalid  = errors.New("jsonq: invalid json")
	ErrNotFound = errors.New("jsonq: path not found")
)

type expect uint8

const (
	expectValue expect = iota
	expectKey
	expectColon
	expectCommaOrEnd
)

// scanner holds the path-tracking state of one Get call.
type scanner struct {
	path    string
	nesting [MaxDepth]byte
	depth   int // current nesting level
	ed      int // expected depth, grows as path segments are consumed
	pos     int // offset of the next unconsumed path byte
	ci, ei  int // current and expected array index at depth ed
}

func (s *scanner) pathAt(k int) byte {
	if k < 0 || k >= len(s.path) {
		return 0
	}
	return s.path[k]
}

// found reports whether the value just completed is the one the path names.
func (s *scanner) found() bool {
	return s.depth == s.ed && s.pos >= len(s.path) && s.ci == s.ei
}

// leave pops one nesting level for the closing byte c.
// '[' and ']' (and '{' and '}') are two apart in ASCII.
func (s *scanner) leave(c byte) error {
	if s.depth == s.ed && s.ci != s.ei {
		return ErrNotFound
	}
	if s.depth == 0 || c != s.nesting[s.depth-1]+2 {
		return ErrInvalid
	}
	s.depth--
	return nil
}

// enterIndex consumes a "[N]" path segment.
func (s *scanner) enterIndex() error {
	s.ed++
	s.pos++
	s.ci, s.ei = 0, 0
	digits := 0
	for ; s.pos < len(s.path) && s.path[s.pos] != ']'; s.pos++ {
		c := s.path[s.pos]
		if c < '0' || c > '9' {
			return ErrInvalid
		}
		s.ei = s.ei*10 + int(c-'0')
		digits++
	}
	if digits == 0 || s.pos >= len(s.path) {
		return ErrInvalid
	}
	s.pos++
	return nil
}

// Get returns the offset and length of the value at path inside json.
// The path grammar is "$" followed by any sequence of ".key" and "[N]".
func Get(json []byte, path string) (int, int, error) {
	if len(path) == 0 || path[0] != '$' {
		return 0, 0, ErrInvalid
	}
	s := scanner{path: path, pos: 1, ci: -1, ei: -1}
	state := expectValue
	start := 0
	comma := false // last token was a ','

	for i := 0; i < len(json); i++ {
		c := json[i]
		if isSpace(c) {
			continue
		}
		afterComma := comma
		comma = false
		switch state {
		case expectValue:
			if s.depth == s.ed {
				start = i
			}
			switch {
			case c == '{':
				if s.depth >= MaxDepth {
					return 0, 0, ErrTooDeep
				}
				if s.depth == s.ed && s.pathAt(s.pos) == '.' && s.ci == s.ei {
					s.ed++
					s.pos++
					s.ci, s.ei = -1, -1
				}
				s.nesting[s.depth] = c
				s.depth++
				state = expectKey
				continue
			case c == '[':
				if s.depth >= MaxDepth {
					return 0, 0, ErrTooDeep
				}
				if s.depth == s.ed && s.pathAt(s.pos) == '[' && s.ci == s.ei {
					if err := s.enterIndex(); err != nil {
						return 0, 0, err
					}
				}
				s.nesting[s.depth] = c
				s.depth++
				continue
			case c == ']' && s.depth > 0 && !afterComma:
				if err := s.leave(c); err != nil {
					return 0, 0, err
				}
			case c == 't' && hasLiteral(json[i:], "true"):
				i += 3
			case c == 'f' && hasLiteral(json[i:], "false"):
				i += 4
			case c == 'n' && hasLiteral(json[i:], "null"):
				i += 3
			case c == '-' || isDigit(c):
				n := scanNumber(json[i:])
				if n == 0 {
					return 0, 0, ErrInvalid
				}
				i += n - 1
			case c == '"':
				n := passString(json[i+1:])
				if n < 0 {
					return 0, 0, ErrInvalid
				}
				i += n + 1
			default:
				return 0, 0, ErrInvalid
			}
			if s.found() {
				return start, i - start + 1, nil
			}
			if s.depth == s.ed && s.ei >= 0 {
				s.ci++
			}
			state = expectCommaOrEnd

		case expectKey:
			switch c {
			case '"':
				n := passString(json[i+1:])
				if n < 0 {
					return 0, 0, ErrInvalid
				}
				if s.depth < s.ed {
					return 0, 0, ErrNotFound
				}
				if s.depth == s.ed {
					if s.pathAt(s.pos-1) != '.' {
						return 0, 0, ErrNotFound
					}
					key := json[i+1 : i+1+n]
					rest := s.path[s.pos:]
					if len(rest) >= n && rest[:n] == string(key) {
						if t := s.pathAt(s.pos + n); t == 0 || t == '.' || t == '[' {
							s.pos += n
						}
					}
				}
				i += n + 1
				state = expectColon
			case '}':
				if afterComma {
					return 0, 0, ErrInvalid
				}
				if err := s.leave(c); err != nil {
					return 0, 0, err
				}
				if s.found() {
					return start, i - start + 1, nil
				}
				if s.depth == s.ed && s.ei >= 0 {
					s.ci++
				}
				state = expectCommaOrEnd
			default:
				return 0, 0, ErrInvalid
			}

		case expectColon:
			if c != ':' {
				return 0, 0, ErrInvalid
			}
			state = expectValue

		case expectCommaOrEnd:
			if s.depth <= 0 {
				return 0, 0, ErrInvalid
			}
			switch c {
			case ',':
				comma = true
				if s.nesting[s.depth-1] == '{' {
					state = expectKey
				} else {
					state = expectValue
				}
			case ']', '}':
				if s.depth == s.ed && c == '}' && s.pathAt(s.pos-1) == '.' {
					return 0, 0, ErrNotFound
				}
				if err := s.leave(c); err != nil {
					return 0, 0, err
				}
				if s.found() {
					return start, i - start + 1, nil
				}
				if s.depth == s.ed && s.ei >= 0 {
					s.ci++
				}
			default:
				return 0, 0, ErrInvalid
			}
		}
	}
	return 0, 0, ErrNotFound
}

// Valid reports whether json holds one complete JSON value and nothing but
// whitespace after it.
func Valid(json []byte) bool {
	off, n, err := Get(json, "$")
	if err != nil {
		return false
	}
	for _, c := range json[off+n:] {
		if !isSpace(c) {
			return false
		}
	}
	return true
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func hasLiteral(s []byte, lit string) bool {
	return len(s) >= len(lit) && string(s[:len(lit)]) == lit
}

// passString returns the offset of the closing quote in s, which starts just
// after the opening quote, or -1 if the string is unterminated or malformed.
func passString(s []byte) int {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\':
			if i+1 >= len(s) || !isEscape(s[i+1]) {
				return -1
			}
			i++
		case c == '"':
			return i
		case c < 0x20:
			return -1
		}
	}
	return -1
}

func isEscape(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

// scanNumber returns the length of the JSON number at the start of s,
// or 0 if s does not start with a well-formed number.
func scanNumber(s []byte) int {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	mark := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == mark {
		return 0
	}
	if i < len(s) && s[i] == '.' {
		i++
		mark = i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == mark {
			return 0
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		mark = i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == mark {
			return 0
		}
	}
	return i
}
