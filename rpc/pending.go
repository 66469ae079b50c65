// File: rpc/pending.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pending tracks the calls a peer has not answered yet. Calls are kept in
// issue order so expiry only ever looks at the head of the queue; answered
// calls are tombstoned and swept once they reach the head.

package rpc

import (
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-wire/jsonq"
)

// ErrCallTimeout is passed to a ResultFunc whose call expired.
var ErrCallTimeout = errors.New("rpc: call timed out")

// ResultFunc receives the raw result token, or the raw error object, of an
// answered call. err is set when the call expired instead.
type ResultFunc func(result, errObj []byte, err error)

type call struct {
	id     int64
	method string
	issued time.Time
	fn     ResultFunc
	done   bool
}

// Pending correlates responses with outstanding calls. Register its Handle
// method under the empty pattern of the Registry that reads the responses.
type Pending struct {
	mu     sync.Mutex
	order  *queue.Queue // *call, oldest first
	byID   map[int64]*call
	nextID int64
	now    func() time.Time
}

// NewPending creates an empty call table.
func NewPending() *Pending {
	return &Pending{
		order: queue.New(),
		byID:  make(map[int64]*call),
		now:   time.Now,
	}
}

// Call writes a request for method to out and remembers fn for its answer.
// params must be a JSON array or object, or nil.
func (p *Pending) Call(out io.Writer, method string, params []byte, fn ResultFunc) (int64, error) {
	// Registered before writing so an answer racing the write is not lost.
	c := &call{method: method, issued: p.now(), fn: fn}
	p.mu.Lock()
	p.nextID++
	c.id = p.nextID
	p.order.Add(c)
	p.byID[c.id] = c
	p.mu.Unlock()

	b := make([]byte, 0, 48+len(method)+len(params))
	b = append(b, `{"id":`...)
	b = strconv.AppendInt(b, c.id, 10)
	b = append(b, `,"method":`...)
	b = jsonq.AppendString(b, method)
	if params != nil {
		b = append(b, `,"params":`...)
		b = append(b, params...)
	}
	b = append(b, '}')
	if _, err := out.Write(b); err != nil {
		p.mu.Lock()
		if p.byID[c.id] == c {
			delete(p.byID, c.id)
			c.done = true
			p.sweep()
		}
		p.mu.Unlock()
		return 0, err
	}
	return c.id, nil
}

// Notify writes a request without an id; no answer is expected.
func Notify(out io.Writer, method string, params []byte) error {
	b := make([]byte, 0, 32+len(method)+len(params))
	b = append(b, `{"method":`...)
	b = jsonq.AppendString(b, method)
	if params != nil {
		b = append(b, `,"params":`...)
		b = append(b, params...)
	}
	b = append(b, '}')
	_, err := out.Write(b)
	return err
}

// Handle is a Handler for response frames. Responses to unknown ids are
// ignored.
func (p *Pending) Handle(req *Request) {
	id, ok := jsonq.GetLong(req.Frame, "$.id")
	if !ok {
		return
	}
	p.mu.Lock()
	c := p.byID[id]
	if c != nil {
		delete(p.byID, id)
		c.done = true
		p.sweep()
	}
	p.mu.Unlock()
	if c == nil || c.fn == nil {
		return
	}
	result, _ := jsonq.GetToken(req.Frame, "$.result")
	errObj, _ := jsonq.GetToken(req.Frame, "$.error")
	c.fn(result, errObj, nil)
}

// Expire fails every call issued more than ttl ago and returns how many
// expired.
func (p *Pending) Expire(ttl time.Duration) int {
	deadline := p.now().Add(-ttl)
	var expired []*call
	p.mu.Lock()
	for p.order.Length() > 0 {
		c := p.order.Peek().(*call)
		if !c.done && c.issued.After(deadline) {
			break
		}
		p.order.Remove()
		if !c.done {
			delete(p.byID, c.id)
			expired = append(expired, c)
		}
	}
	p.mu.Unlock()
	for _, c := range expired {
		if c.fn != nil {
			c.fn(nil, nil, ErrCallTimeout)
		}
	}
	return len(expired)
}

// Len returns the number of unanswered calls.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// Outstanding returns the method names of unanswered calls, oldest first.
func (p *Pending) Outstanding() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.byID))
	for i := 0; i < p.order.Length(); i++ {
		if c := p.order.Get(i).(*call); !c.done {
			out = append(out, c.method)
		}
	}
	return out
}

// sweep drops answered calls from the head of the queue.
func (p *Pending) sweep() {
	for p.order.Length() > 0 && p.order.Peek().(*call).done {
		p.order.Remove()
	}
}
