// File: rpc/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package rpc

import (
	"fmt"
	"io"
	"strconv"

	"github.com/momentics/hioload-wire/jsonq"
)

// Request is one dispatched frame. ID and Params are raw JSON tokens into
// Frame (nil when absent); they are copied verbatim into replies.
type Request struct {
	Frame  []byte
	Method string
	ID     []byte
	Params []byte
	Data   any

	out io.Writer
}

// NewRequest wraps frame for a handler invoked outside Process, replying
// to out.
func NewRequest(frame []byte, out io.Writer) *Request {
	req := &Request{Frame: frame, out: out}
	req.ID, _ = jsonq.GetToken(frame, "$.id")
	req.Params, _ = jsonq.GetToken(frame, "$.params")
	req.Method, _ = jsonq.GetStr(frame, "$.method")
	return req
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool { return r.ID == nil }

// Ok replies with result, which must be a valid JSON value. Notifications
// get no reply.
func (r *Request) Ok(result []byte) error {
	if r.ID == nil {
		return nil
	}
	b := make([]byte, 0, len(r.ID)+len(result)+24)
	b = append(b, `{"id":`...)
	b = append(b, r.ID...)
	b = append(b, `,"result":`...)
	b = append(b, result...)
	b = append(b, '}')
	return r.write(b)
}

// Okf formats the result like fmt.Sprintf; the output must be valid JSON.
func (r *Request) Okf(format string, args ...any) error {
	return r.Ok([]byte(fmt.Sprintf(format, args...)))
}

// Err replies with an error object. The id is omitted when the request had
// none.
func (r *Request) Err(code int, message string) error {
	b := make([]byte, 0, len(r.ID)+len(message)+48)
	b = append(b, '{')
	if r.ID != nil {
		b = append(b, `"id":`...)
		b = append(b, r.ID...)
		b = append(b, ',')
	}
	b = append(b, `"error":{"code":`...)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, `,"message":`...)
	b = jsonq.AppendString(b, message)
	b = append(b, "}}"...)
	return r.write(b)
}

// Errf is Err with a formatted message.
func (r *Request) Errf(code int, format string, args ...any) error {
	return r.Err(code, fmt.Sprintf(format, args...))
}

func (r *Request) write(b []byte) error {
	if r.out == nil {
		return nil
	}
	_, err := r.out.Write(b)
	return err
}
