// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-wire.
// IOBuf is the connection-owned growable buffer all codec views borrow from;
// SyncPool recycles IOBufs between connections.
package pool
