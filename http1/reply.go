// File: http1/reply.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package http1

import (
	"net/http"
	"strconv"

	"github.com/momentics/hioload-wire/pool"
)

// StatusText returns the reason phrase for code, "OK" style.
func StatusText(code int) string {
	if s := http.StatusText(code); s != "" {
		return s
	}
	return "Unknown"
}

// Reply appends a complete HTTP/1.1 response to out. headers must be empty or
// a sequence of CRLF-terminated header lines; Content-Length is added.
func Reply(out *pool.IOBuf, code int, headers string, body []byte) error {
	line := make([]byte, 0, 64+len(headers))
	line = append(line, "HTTP/1.1 "...)
	line = strconv.AppendInt(line, int64(code), 10)
	line = append(line, ' ')
	line = append(line, StatusText(code)...)
	line = append(line, "\r\n"...)
	line = append(line, headers...)
	line = append(line, "Content-Length: "...)
	line = strconv.AppendInt(line, int64(len(body)), 10)
	line = append(line, "\r\n\r\n"...)
	if err := out.Resize(out.Len() + len(line) + len(body)); err != nil {
		return err
	}
	if err := out.Append(line...); err != nil {
		return err
	}
	return out.Append(body...)
}
