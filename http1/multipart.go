// File: http1/multipart.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package http1

import (
	"bytes"
)

// Part is one multipart/form-data section. All fields alias the body.
type Part struct {
	Name     []byte
	Filename []byte
	Body     []byte
}

// NextPart parses the part whose boundary line starts at off in a buffered
// multipart body. It returns the offset of the next boundary line, or 0 when
// the body is incomplete, malformed or at the closing boundary.
func NextPart(body []byte, off int) (int, Part) {
	var part Part
	if off < 0 || off >= len(body) {
		return 0, part
	}
	eol := indexCRLF(body, off)
	if eol < 0 {
		return 0, part
	}
	boundary := body[off:eol]
	if len(boundary) < 3 || boundary[0] != '-' || boundary[1] != '-' ||
		bytes.HasSuffix(boundary, []byte("--")) {
		return 0, part
	}

	h := eol + 2
	for {
		e := indexCRLF(body, h)
		if e < 0 {
			return 0, part
		}
		if e == h {
			break
		}
		line := body[h:e]
		const cd = "Content-Disposition:"
		if asciiPrefixFold(line, cd) {
			v := bytes.TrimLeft(line[len(cd):], " \t")
			part.Name = HeaderVar(v, "name")
			part.Filename = HeaderVar(v, "filename")
		}
		h = e + 2
	}

	start := h + 2
	for from := start; from < len(body); {
		k := bytes.Index(body[from:], boundary)
		if k < 0 {
			break
		}
		pos := from + k
		if pos >= start+2 && body[pos-2] == '\r' && body[pos-1] == '\n' {
			part.Body = body[start : pos-2]
			return pos, part
		}
		from = pos + 1
	}
	return 0, Part{}
}

func indexCRLF(b []byte, from int) int {
	k := bytes.Index(b[from:], []byte("\r\n"))
	if k < 0 {
		return -1
	}
	return from + k
}
