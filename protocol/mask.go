// File: protocol/mask.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// wordOrder is the host byte order; loads and stores in it compile to plain
// moves.
var wordOrder binary.ByteOrder = binary.LittleEndian

func init() {
	if cpu.IsBigEndian {
		wordOrder = binary.BigEndian
	}
}

// Mask XORs b in place with the rolling key, starting at key position pos.
// It returns the key position following the last byte, so a payload can be
// masked in several calls.
func Mask(b []byte, key [4]byte, pos int) int {
	pos &= 3
	if len(b) >= 8 {
		var k [8]byte
		for i := range k {
			k[i] = key[(pos+i)&3]
		}
		kw := wordOrder.Uint64(k[:])
		i := 0
		for ; i+8 <= len(b); i += 8 {
			wordOrder.PutUint64(b[i:], wordOrder.Uint64(b[i:])^kw)
		}
		b = b[i:]
	}
	for i := range b {
		b[i] ^= key[pos]
		pos = (pos + 1) & 3
	}
	return pos
}

// MaskJustSent masks the last n bytes of out with the 4-byte key written
// right before them by EncodeHeader. It is a no-op when out is too short to
// hold the key.
func MaskJustSent(out []byte, n int) {
	if n < 0 || n+4 > len(out) {
		return
	}
	p := len(out) - n
	var key [4]byte
	copy(key[:], out[p-4:p])
	Mask(out[p:], key, 0)
}
