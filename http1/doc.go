// Package http1
// Author: momentics <momentics@gmail.com>
//
// Streaming HTTP/1.x codecs for hioload-wire.
//
// The parser works on whatever prefix of the stream is buffered: RequestLen
// and Parse return 0 until the head is complete, ChunkDecoder.Walk delivers
// chunks as they arrive and reassembles the body in place, and NextPart walks
// a buffered multipart/form-data body. Parsed fields are sub-slices of the
// caller's buffer and become invalid once that buffer is compacted or grown.
package http1
