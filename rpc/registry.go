// File: rpc/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry routes JSON-RPC frames to handlers by glob-matched method name.
// The newest registration wins; the empty pattern receives responses
// ({"result":...} / {"error":...} without a method) so a client can correlate
// them with its outstanding calls.

package rpc

import (
	"io"
	"sync"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/api"
	"github.com/momentics/hioload-wire/jsonq"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MethodSeparator splits method namespaces: "*" stays within one segment,
// "**" crosses them.
const MethodSeparator = '.'

// Handler serves one request. It answers through req.Ok / req.Err.
type Handler func(req *Request)

type entry struct {
	pattern string
	match   glob.Glob // nil for the response pattern ""
	fn      Handler
	data    any
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger sets the dispatch logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// Registry is an ordered handler list, newest first. It is safe for
// concurrent Process calls; Add and Del are expected at setup time but are
// synchronized as well.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	log     zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers fn for method names matching pattern, ahead of all earlier
// registrations. data is handed to fn as req.Data.
//
// Patterns are globs split on MethodSeparator: "math.*" matches "math.sum",
// but "*" alone does not, so a catch-all for dotted names is "**". The
// empty pattern receives response frames.
func (r *Registry) Add(pattern string, fn Handler, data any) error {
	if fn == nil {
		return api.ErrInvalidArgument
	}
	e := entry{pattern: pattern, fn: fn, data: data}
	if pattern != "" {
		g, err := glob.Compile(pattern, MethodSeparator)
		if err != nil {
			return api.Wrap(api.ErrCodeInvalidArgument, "compile method pattern", err).
				WithContext("pattern", pattern)
		}
		e.match = g
	}
	r.mu.Lock()
	r.entries = append([]entry{e}, r.entries...)
	r.mu.Unlock()
	return nil
}

// Del removes every registration made with exactly pattern and reports how
// many were removed.
func (r *Registry) Del(pattern string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.pattern != pattern {
			kept = append(kept, e)
		}
	}
	n := len(r.entries) - len(kept)
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = entry{}
	}
	r.entries = kept
	return n
}

// Patterns returns the registered method patterns, newest first, without
// the response pattern.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.pattern != "" {
			out = append(out, e.pattern)
		}
	}
	return out
}

// List is a Handler answering with the array of registered patterns. Register
// it as "rpc.list" to expose it.
func (r *Registry) List(req *Request) {
	buf := []byte{'['}
	for i, p := range r.Patterns() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = jsonq.AppendString(buf, p)
	}
	buf = append(buf, ']')
	req.Ok(buf)
}

func (r *Registry) find(method string, response bool) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if response {
			if e.pattern == "" {
				return e, true
			}
			continue
		}
		if e.match != nil && e.match.Match(method) {
			return e, true
		}
	}
	return entry{}, false
}

// Process dispatches one frame, writing any reply to out. Exactly one handler
// runs for a matching request. Unparsable frames get a -32700 reply, frames
// that are neither request nor response -32600, unknown methods -32601.
// Responses without a registered "" handler are dropped.
func (r *Registry) Process(frame []byte, out io.Writer) {
	req := &Request{Frame: frame, out: out}
	if !jsonq.Valid(frame) {
		r.log.Debug().Int("len", len(frame)).Msg("rpc parse error")
		req.Err(CodeParseError, "parse error")
		return
	}
	req.ID, _ = jsonq.GetToken(frame, "$.id")
	req.Params, _ = jsonq.GetToken(frame, "$.params")

	if tok, ok := jsonq.GetToken(frame, "$.method"); ok {
		method, ok := jsonq.GetStr(frame, "$.method")
		if !ok || tok[0] != '"' {
			req.Err(CodeInvalidRequest, "method must be a string")
			return
		}
		req.Method = method
		e, found := r.find(method, false)
		if !found {
			r.log.Debug().Str("method", method).Msg("rpc method not found")
			req.Errf(CodeMethodNotFound, "%s not found", method)
			return
		}
		req.Data = e.data
		r.log.Debug().Str("method", method).Str("pattern", e.pattern).Msg("rpc dispatch")
		e.fn(req)
		return
	}

	_, hasResult := jsonq.GetToken(frame, "$.result")
	_, hasError := jsonq.GetToken(frame, "$.error")
	if hasResult || hasError {
		if e, found := r.find("", true); found {
			req.Data = e.data
			e.fn(req)
		} else {
			r.log.Debug().Str("id", string(req.ID)).Msg("rpc response without handler dropped")
		}
		return
	}
	req.Err(CodeInvalidRequest, "invalid request")
}
