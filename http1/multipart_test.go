package http1_test

import (
	"testing"

	"github.com/momentics/hioload-wire/http1"
)

const formBody = "--xyz\r\n" +
	"Content-Disposition: form-data; name=\"foo\"\r\n" +
	"\r\n" +
	"bar\r\n" +
	"--xyz\r\n" +
	"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"hello\r\n--xy world\r\n" +
	"--xyz--\r\n"

func TestNextPart(t *testing.T) {
	body := []byte(formBody)
	type want struct{ name, filename, body string }
	wants := []want{
		{"foo", "", "bar"},
		{"file", "a.txt", "hello\r\n--xy world"},
	}
	var got []want
	off := 0
	for {
		next, p := http1.NextPart(body, off)
		if next == 0 {
			break
		}
		got = append(got, want{string(p.Name), string(p.Filename), string(p.Body)})
		if len(p.Body) > 0 && &p.Body[0] != &body[cap(body)-cap(p.Body)] {
			t.Error("part body is not a view into the source")
		}
		off = next
	}
	if len(got) != len(wants) {
		t.Fatalf("got %d parts: %q", len(got), got)
	}
	for i := range wants {
		if got[i] != wants[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], wants[i])
		}
	}
}

func TestNextPartIncomplete(t *testing.T) {
	full := []byte(formBody)
	// Cut inside the second part body: the first part is still complete.
	cut := full[:len(full)-20]
	next, p := http1.NextPart(cut, 0)
	if next == 0 || string(p.Name) != "foo" {
		t.Fatalf("first part: next=%d name=%q", next, p.Name)
	}
	if n2, _ := http1.NextPart(cut, next); n2 != 0 {
		t.Errorf("truncated part returned %d", n2)
	}
	if n, _ := http1.NextPart([]byte("--xyz\r\nContent-Dispo"), 0); n != 0 {
		t.Errorf("truncated headers returned %d", n)
	}
	if n, _ := http1.NextPart([]byte("xyz\r\n\r\nbody\r\nxyz"), 0); n != 0 {
		t.Errorf("boundary without dashes returned %d", n)
	}
}
