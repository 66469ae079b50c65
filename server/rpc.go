// File: server/rpc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"encoding/json"

	"github.com/momentics/hioload-wire/protocol"
	"github.com/momentics/hioload-wire/rpc"
)

// wsWriter sends each Write as one text message.
type wsWriter struct{ c *protocol.Conn }

func (w wsWriter) Write(p []byte) (int, error) {
	if _, err := w.c.Send(protocol.OpcodeText, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// RPCOverWebSocket returns a WebSocket handler that dispatches every text
// message through reg and sends replies back as text messages. Binary
// messages and control frames are ignored.
func RPCOverWebSocket(reg *rpc.Registry) protocol.Handler {
	return protocol.HandlerFunc(func(c *protocol.Conn, ev protocol.Event, msg protocol.Message) {
		if ev != protocol.EventMessage || msg.Op != protocol.OpcodeText {
			return
		}
		reg.Process(msg.Data, wsWriter{c})
	})
}

// RegisterStats exposes the server's metrics and probes as the "server.stats"
// method.
func RegisterStats(reg *rpc.Registry, s *Server) error {
	return reg.Add("server.stats", func(req *rpc.Request) {
		b, err := json.Marshal(map[string]any{
			"metrics": s.Metrics().GetSnapshot(),
			"probes":  s.Probes().DumpState(),
		})
		if err != nil {
			req.Err(rpc.CodeInternalError, err.Error())
			return
		}
		req.Ok(b)
	}, nil)
}
