// Package jsonq
// Author: momentics <momentics@gmail.com>
//
// Allocation-free JSON path queries for hioload-wire.
//
// Includes:
//   - Get: single-pass locate of "$", ".key" and "[N]" paths as (offset, length)
//   - Next: lazy iteration over one object or array level
//   - Typed accessors (number, bool, string, base64, hex) decoding on demand
//
// Results are offsets into the caller's text; nothing is copied until a typed
// accessor has to unescape or decode.
package jsonq
