package pool_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-wire/api"
	"github.com/momentics/hioload-wire/pool"
)

func TestIOBufAppendDelete(t *testing.T) {
	b := pool.NewIOBuf(0, 16, 0)
	if err := b.AppendString("hello, world"); err != nil {
		t.Fatal(err)
	}
	if n := b.Delete(5, 2); n != 2 {
		t.Fatalf("Delete removed %d, want 2", n)
	}
	if got := string(b.Bytes()); got != "helloworld" {
		t.Errorf("got %q", got)
	}
	if n := b.Delete(8, 100); n != 2 {
		t.Errorf("clipped delete removed %d, want 2", n)
	}
	if n := b.Delete(50, 1); n != 0 {
		t.Errorf("out of range delete removed %d", n)
	}
	if b.Cap()%16 != 0 {
		t.Errorf("capacity %d not aligned", b.Cap())
	}
}

func TestIOBufInsert(t *testing.T) {
	b := pool.NewIOBuf(4, 0, 0)
	b.AppendString("held")
	if err := b.Insert(3, []byte("lo wor")); err != nil {
		t.Fatal(err)
	}
	if got := string(b.Bytes()); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if err := b.Insert(99, nil); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestIOBufLimit(t *testing.T) {
	b := pool.NewIOBuf(0, 8, 10)
	if err := b.AppendString("0123456789"); err != nil {
		t.Fatal(err)
	}
	err := b.Append('x')
	if !errors.Is(err, api.ErrResourceExhausted) {
		t.Fatalf("expected ErrResourceExhausted, got %v", err)
	}
	if api.CodeOf(err) != api.ErrCodeResourceExhausted {
		t.Errorf("code = %v", api.CodeOf(err))
	}
	if b.Len() != 10 {
		t.Errorf("failed append changed length to %d", b.Len())
	}
}

func TestIOBufGrowTruncate(t *testing.T) {
	b := pool.NewIOBuf(0, 0, 0)
	tail, err := b.Grow(3)
	if err != nil {
		t.Fatal(err)
	}
	copy(tail, "abc")
	b.Truncate(2)
	if got := string(b.Bytes()); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestIOBufPoolReuse(t *testing.T) {
	p := pool.NewIOBufPool(64, 64, 0, 1024)
	b1 := p.Get()
	b1.AppendString("data")
	p.Put(b1)
	b2 := p.Get()
	if b2.Len() != 0 {
		t.Error("pooled buffer was not reset")
	}
}
