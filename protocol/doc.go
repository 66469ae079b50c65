// Package protocol
// Author: momentics <momentics@gmail.com>
//
// RFC6455 WebSocket codec for hioload-wire.
//
// Includes:
//   - Frame header encoding (2/4/10 bytes, client masking) and in-place decoding
//   - Word-at-a-time payload masking
//   - Conn: fragmentation reassembly and ping/pong/close handling over pool.IOBuf
//   - Opening handshake for server and client built on http1
//
// Nothing here performs I/O; a Conn is fed by whoever owns the socket.
package protocol
