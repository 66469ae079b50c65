// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import "sync"

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool wraps sync.Pool for generic usage.
type SyncPool[T any] struct {
	pool  *sync.Pool
	reset func(T)
}

// NewSyncPool creates a new SyncPool with a creator function. The optional
// reset hook runs on every Put.
func NewSyncPool[T any](creator func() T, reset func(T)) *SyncPool[T] {
	return &SyncPool[T]{
		pool:  &sync.Pool{New: func() any { return creator() }},
		reset: reset,
	}
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	if sp.reset != nil {
		sp.reset(obj)
	}
	sp.pool.Put(obj)
}

// NewIOBufPool returns a pool of IOBufs sharing one size policy. Returned
// buffers are emptied; buffers that grew past maxKeep are dropped on Put.
func NewIOBufPool(capacity, align, limit, maxKeep int) *IOBufPool {
	p := &IOBufPool{maxKeep: maxKeep}
	p.SyncPool = NewSyncPool(func() *IOBuf {
		return NewIOBuf(capacity, align, limit)
	}, func(b *IOBuf) { b.Reset() })
	return p
}

// IOBufPool recycles connection buffers.
type IOBufPool struct {
	*SyncPool[*IOBuf]
	maxKeep int
}

// Put returns b to the pool unless it grew too large to be worth keeping.
func (p *IOBufPool) Put(b *IOBuf) {
	if b == nil || (p.maxKeep > 0 && b.Cap() > p.maxKeep) {
		return
	}
	p.SyncPool.Put(b)
}
