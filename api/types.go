// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// ConnState enumerates the lifecycle of a served connection.
type ConnState int

const (
	ConnUnknown ConnState = iota
	ConnHTTP
	ConnWebSocket
	ConnDraining
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnHTTP:
		return "http"
	case ConnWebSocket:
		return "websocket"
	case ConnDraining:
		return "draining"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}
