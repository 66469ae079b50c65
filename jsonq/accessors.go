// File: jsonq/accessors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed accessors on top of Get. All of them return ok == false without any
// partial output when the token is missing or does not decode.

package jsonq

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
)

// GetToken returns the raw token at path. The slice aliases json.
func GetToken(json []byte, path string) ([]byte, bool) {
	off, n, err := Get(json, path)
	if err != nil {
		return nil, false
	}
	return json[off : off+n], true
}

// GetNum returns the number at path.
func GetNum(json []byte, path string) (float64, bool) {
	tok, ok := GetToken(json, path)
	if !ok || (tok[0] != '-' && !isDigit(tok[0])) {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetLong returns the number at path as an int64. Integers are parsed
// exactly; numbers with a fraction or exponent are truncated.
func GetLong(json []byte, path string) (int64, bool) {
	tok, ok := GetToken(json, path)
	if !ok || (tok[0] != '-' && !isDigit(tok[0])) {
		return 0, false
	}
	if v, err := strconv.ParseInt(string(tok), 10, 64); err == nil {
		return v, true
	}
	v, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		return 0, false
	}
	return int64(v), true
}

// GetBool returns the boolean at path.
func GetBool(json []byte, path string) (bool, bool) {
	tok, ok := GetToken(json, path)
	if !ok {
		return false, false
	}
	switch string(tok) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// GetStr returns the unescaped string at path.
func GetStr(json []byte, path string) (string, bool) {
	b, ok := getStrBytes(json, path)
	if !ok {
		return "", false
	}
	return string(b), true
}

// GetB64 returns the base64-decoded string at path. Padded and unpadded
// standard alphabets are accepted.
func GetB64(json []byte, path string) ([]byte, bool) {
	s, ok := getStrBytes(json, path)
	if !ok {
		return nil, false
	}
	enc := base64.StdEncoding
	if len(s)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	out := make([]byte, enc.DecodedLen(len(s)))
	n, err := enc.Decode(out, s)
	if err != nil {
		return nil, false
	}
	return out[:n], true
}

// GetHex returns the hex-decoded string at path.
func GetHex(json []byte, path string) ([]byte, bool) {
	s, ok := getStrBytes(json, path)
	if !ok {
		return nil, false
	}
	out := make([]byte, hex.DecodedLen(len(s)))
	if _, err := hex.Decode(out, s); err != nil {
		return nil, false
	}
	return out, true
}

func getStrBytes(json []byte, path string) ([]byte, bool) {
	tok, ok := GetToken(json, path)
	if !ok || len(tok) < 2 || tok[0] != '"' {
		return nil, false
	}
	return Unescape(tok[1 : len(tok)-1])
}

// Unescape decodes JSON string escapes. Only \u00XX code points are
// supported; anything above the single-byte range is rejected.
func Unescape(s []byte) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+1 >= len(s) {
			return nil, false
		}
		i++
		switch s[i] {
		case '"', '\\', '/':
			out = append(out, s[i])
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			if i+4 >= len(s) || s[i+1] != '0' || s[i+2] != '0' {
				return nil, false
			}
			hi, ok1 := unhex(s[i+3])
			lo, ok2 := unhex(s[i+4])
			if !ok1 || !ok2 {
				return nil, false
			}
			out = append(out, hi<<4|lo)
			i += 4
		default:
			return nil, false
		}
	}
	return out, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

const hexDigits = "0123456789abcdef"

// AppendString appends s to dst as a quoted JSON string.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\':
			dst = append(dst, '\\', c)
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			if c < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			} else {
				dst = append(dst, c)
			}
		}
	}
	return append(dst, '"')
}
