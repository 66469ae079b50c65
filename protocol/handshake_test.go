package protocol_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/momentics/hioload-wire/http1"
	"github.com/momentics/hioload-wire/pool"
	"github.com/momentics/hioload-wire/protocol"
)

func TestComputeAcceptKey(t *testing.T) {
	// Example from RFC 6455 section 1.3.
	if got := protocol.ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("accept = %s", got)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	key := protocol.NewClientKey()
	req := pool.NewIOBuf(0, 0, 0)
	if err := protocol.ClientHandshakeRequest(req, "example.com", "/rpc", key, "Sec-WebSocket-Protocol: json\r\n"); err != nil {
		t.Fatal(err)
	}

	var m http1.Message
	if n, err := http1.Parse(req.Bytes(), &m); err != nil || n != req.Len() {
		t.Fatalf("Parse request = %d, %v", n, err)
	}
	if string(m.URI) != "/rpc" || string(m.Header("Sec-WebSocket-Protocol")) != "json" {
		t.Errorf("request: %q %q", m.URI, m.Header("Sec-WebSocket-Protocol"))
	}

	resp := pool.NewIOBuf(0, 0, 0)
	if err := protocol.ServerHandshake(&m, resp, "json"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(resp.Bytes()), "Sec-WebSocket-Protocol: json\r\n") {
		t.Errorf("subprotocol missing from %q", resp.Bytes())
	}

	var r http1.Message
	if n, err := http1.Parse(resp.Bytes(), &r); err != nil || n != resp.Len() {
		t.Fatalf("Parse response = %d, %v", n, err)
	}
	if err := protocol.CheckHandshakeResponse(&r, key, "chat, json"); err != nil {
		t.Errorf("CheckHandshakeResponse: %v", err)
	}
	if err := protocol.CheckHandshakeResponse(&r, protocol.NewClientKey(), "json"); !errors.Is(err, protocol.ErrBadAccept) {
		t.Errorf("wrong key accepted: %v", err)
	}
}

func TestSubprotocolNegotiation(t *testing.T) {
	cases := []struct {
		offered, configured string
		echoed              bool
	}{
		{"", "jsonrpc", false},
		{"chat", "jsonrpc", false},
		{"chat, jsonrpc", "jsonrpc", true},
		{"jsonrpc", "", false},
	}
	for _, tc := range cases {
		key := protocol.NewClientKey()
		var extra string
		if tc.offered != "" {
			extra = "Sec-WebSocket-Protocol: " + tc.offered + "\r\n"
		}
		req := pool.NewIOBuf(0, 0, 0)
		protocol.ClientHandshakeRequest(req, "example.com", "/", key, extra)
		var m http1.Message
		if _, err := http1.Parse(req.Bytes(), &m); err != nil {
			t.Fatal(err)
		}
		resp := pool.NewIOBuf(0, 0, 0)
		if err := protocol.ServerHandshake(&m, resp, tc.configured); err != nil {
			t.Fatal(err)
		}
		if got := strings.Contains(string(resp.Bytes()), "Sec-WebSocket-Protocol"); got != tc.echoed {
			t.Errorf("offered %q, configured %q: echoed = %v", tc.offered, tc.configured, got)
		}
		var r http1.Message
		if _, err := http1.Parse(resp.Bytes(), &r); err != nil {
			t.Fatal(err)
		}
		if err := protocol.CheckHandshakeResponse(&r, key, tc.offered); err != nil {
			t.Errorf("offered %q: CheckHandshakeResponse: %v", tc.offered, err)
		}
	}
}

func TestUnofferedSubprotocolRejected(t *testing.T) {
	key := "dGhlIHNhbXBsZSBub25jZQ=="
	raw := "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + protocol.ComputeAcceptKey(key) + "\r\n" +
		"Sec-WebSocket-Protocol: jsonrpc\r\n\r\n"
	var r http1.Message
	if _, err := http1.Parse([]byte(raw), &r); err != nil {
		t.Fatal(err)
	}
	if err := protocol.CheckHandshakeResponse(&r, key, ""); !errors.Is(err, protocol.ErrBadSubprotocol) {
		t.Errorf("no offer: %v", err)
	}
	if err := protocol.CheckHandshakeResponse(&r, key, "chat"); !errors.Is(err, protocol.ErrBadSubprotocol) {
		t.Errorf("other offer: %v", err)
	}
	if err := protocol.CheckHandshakeResponse(&r, key, "chat, jsonrpc"); err != nil {
		t.Errorf("offered: %v", err)
	}
}

func TestValidateUpgrade(t *testing.T) {
	cases := map[string]error{
		"GET / HTTP/1.1\r\nHost: x\r\n\r\n": protocol.ErrInvalidUpgradeHeaders,
		"GET / HTTP/1.1\r\nConnection: keep-alive, Upgrade\r\nUpgrade: WebSocket\r\n" +
			"Sec-WebSocket-Version: 8\r\nSec-WebSocket-Key: a\r\n\r\n": protocol.ErrBadWebSocketVersion,
		"GET / HTTP/1.1\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n" +
			"Sec-WebSocket-Version: 13\r\n\r\n": protocol.ErrMissingWebSocketKey,
		"GET / HTTP/1.1\r\nConnection: keep-alive, Upgrade\r\nUpgrade: websocket\r\n" +
			"Sec-WebSocket-Version: 13\r\nSec-WebSocket-Key: a\r\n\r\n": nil,
	}
	for raw, want := range cases {
		var m http1.Message
		if _, err := http1.Parse([]byte(raw), &m); err != nil {
			t.Fatal(err)
		}
		if err := protocol.ValidateUpgrade(&m); !errors.Is(err, want) {
			t.Errorf("ValidateUpgrade(%q) = %v, want %v", raw, err, want)
		}
	}
}
