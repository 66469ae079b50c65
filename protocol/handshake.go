// File: protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RFC6455 opening handshake on top of the zero-copy HTTP/1 parser, for both
// the accepting and the connecting side.

package protocol

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/momentics/hioload-wire/http1"
	"github.com/momentics/hioload-wire/pool"
)

const (
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	RequiredWebSocketVersion = "13"
)

var (
	ErrInvalidUpgradeHeaders = errors.New("invalid WebSocket upgrade headers")
	ErrMissingWebSocketKey   = errors.New("missing Sec-WebSocket-Key header")
	ErrBadWebSocketVersion   = errors.New("unsupported WebSocket version; only '13' is supported")
	ErrBadAccept             = errors.New("websocket accept key mismatch")
	ErrBadSubprotocol        = errors.New("websocket subprotocol was not offered")
)

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client's key.
func ComputeAcceptKey(clientKey string) string {
	hash := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// IsUpgrade reports whether m asks for a WebSocket upgrade.
func IsUpgrade(m *http1.Message) bool {
	return containsToken(string(m.Header("Connection")), "upgrade") &&
		containsToken(string(m.Header("Upgrade")), "websocket")
}

// ValidateUpgrade checks the client handshake request.
func ValidateUpgrade(m *http1.Message) error {
	if !IsUpgrade(m) {
		return ErrInvalidUpgradeHeaders
	}
	if string(m.Header("Sec-WebSocket-Version")) != RequiredWebSocketVersion {
		return ErrBadWebSocketVersion
	}
	if len(m.Header("Sec-WebSocket-Key")) == 0 {
		return ErrMissingWebSocketKey
	}
	return nil
}

// ServerHandshake validates the upgrade request and appends the 101 reply to
// out. A non-empty subprotocol is echoed in Sec-WebSocket-Protocol only when
// the client listed it.
func ServerHandshake(m *http1.Message, out *pool.IOBuf, subprotocol string) error {
	if err := ValidateUpgrade(m); err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: ")
	sb.WriteString(ComputeAcceptKey(string(m.Header("Sec-WebSocket-Key"))))
	sb.WriteString("\r\n")
	if subprotocol != "" && containsToken(string(m.Header("Sec-WebSocket-Protocol")), subprotocol) {
		sb.WriteString("Sec-WebSocket-Protocol: ")
		sb.WriteString(subprotocol)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	return out.AppendString(sb.String())
}

// NewClientKey returns a random base64 Sec-WebSocket-Key.
func NewClientKey() string {
	var nonce [16]byte
	_, _ = rand.Read(nonce[:])
	return base64.StdEncoding.EncodeToString(nonce[:])
}

// ClientHandshakeRequest appends an upgrade request for path on host to out.
// extraHeaders must be empty or CRLF-terminated header lines.
func ClientHandshakeRequest(out *pool.IOBuf, host, path, key, extraHeaders string) error {
	if path == "" {
		path = "/"
	}
	return out.AppendString("GET " + path + " HTTP/1.1\r\n" +
		"Host: " + host + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Version: " + RequiredWebSocketVersion + "\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		extraHeaders + "\r\n")
}

// CheckHandshakeResponse verifies the server's 101 reply to a request sent
// with key. offered is the Sec-WebSocket-Protocol list the request carried,
// empty when it carried none; the reply may only select one of those.
func CheckHandshakeResponse(m *http1.Message, key, offered string) error {
	if m.Status() != 101 || !IsUpgrade(m) {
		return ErrInvalidUpgradeHeaders
	}
	if string(m.Header("Sec-WebSocket-Accept")) != ComputeAcceptKey(key) {
		return ErrBadAccept
	}
	if sel := strings.TrimSpace(string(m.Header("Sec-WebSocket-Protocol"))); sel != "" {
		if strings.Contains(sel, ",") || !containsToken(offered, sel) {
			return ErrBadSubprotocol
		}
	}
	return nil
}

// containsToken checks if a comma separated header value holds token
// (case-insensitive).
func containsToken(headerValue, token string) bool {
	for _, p := range strings.Split(headerValue, ",") {
		if strings.EqualFold(strings.TrimSpace(p), token) {
			return true
		}
	}
	return false
}
