// Package server
// Author: momentics <momentics@gmail.com>
//
// Connection driver for the hioload-wire codecs: accept loop, per-connection
// HTTP/1.1 pipeline with chunked body reassembly, WebSocket upgrade and
// JSON-RPC over WebSocket.
package server
