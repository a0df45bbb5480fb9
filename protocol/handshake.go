// File: protocol/handshake.go
// Package protocol implements the server side of the WebSocket opening handshake.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The handshake runs against whatever bytes the socket produced so far: an
// incomplete request is reported as NeedMore and the caller retries on the
// next readable event with the same, longer buffer.

package protocol

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/momentics/hioload-relay/api"
)

var headerTerminator = []byte("\r\n\r\n")

// Limits bound what a single peer may make the codec buffer.
type Limits struct {
	MaxHandshakeBytes int
	MaxPayload        int64
}

// DefaultLimits returns the codec defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxHandshakeBytes: DefaultMaxHandshakeBytes,
		MaxPayload:        DefaultMaxPayload,
	}
}

// Handshaker implements api.Handshaker.
type Handshaker struct {
	limits Limits
}

var _ api.Handshaker = (*Handshaker)(nil)

// NewHandshaker returns a Handshaker; zero limits fall back to defaults.
func NewHandshaker(l Limits) *Handshaker {
	d := DefaultLimits()
	if l.MaxHandshakeBytes <= 0 {
		l.MaxHandshakeBytes = d.MaxHandshakeBytes
	}
	if l.MaxPayload <= 0 {
		l.MaxPayload = d.MaxPayload
	}
	return &Handshaker{limits: l}
}

// TryCompleteHandshake validates the buffered Upgrade request.
func (h *Handshaker) TryCompleteHandshake(buffered []byte) api.HandshakeResult {
	end := bytes.Index(buffered, headerTerminator)
	if end < 0 {
		if len(buffered) > h.limits.MaxHandshakeBytes {
			return reject(api.ErrHandshakeTooLong, http.StatusRequestHeaderFieldsTooLarge)
		}
		return api.HandshakeResult{Status: api.HandshakeNeedMore}
	}
	end += len(headerTerminator)
	if end > h.limits.MaxHandshakeBytes {
		return reject(api.ErrHandshakeTooLong, http.StatusRequestHeaderFieldsTooLarge)
	}

	hdr, err := DoHandshakeCore(buffered[:end])
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrBadWebSocketVersion) {
			status = http.StatusUpgradeRequired
		}
		return reject(err, status)
	}

	var resp bytes.Buffer
	if err := WriteHandshakeResponse(&resp, hdr); err != nil {
		return reject(err, http.StatusInternalServerError)
	}

	sess := NewSession(h.limits.MaxPayload)
	sess.Feed(buffered[end:])
	return api.HandshakeResult{
		Status:   api.HandshakeEstablished,
		Session:  sess,
		Response: resp.Bytes(),
	}
}

func reject(err error, status int) api.HandshakeResult {
	return api.HandshakeResult{
		Status:   api.HandshakeRejected,
		Response: errorResponse(status),
		Err:      err,
	}
}

// DoHandshakeCore parses and validates one complete HTTP/1.1 Upgrade request.
// Returns the headers to include in the 101 Switching Protocols response.
func DoHandshakeCore(request []byte) (http.Header, error) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(request)))
	if err != nil {
		return nil, fmt.Errorf("handshake read request: %w", err)
	}
	if req.Method != http.MethodGet {
		return nil, ErrBadMethod
	}

	// Validate required upgrade tokens.
	if !headerContainsToken(req.Header, HeaderConnection, "Upgrade") ||
		!headerContainsToken(req.Header, HeaderUpgrade, "websocket") {
		return nil, ErrInvalidUpgradeHeaders
	}

	// Verify WebSocket version.
	if req.Header.Get(HeaderSecWebSocketVer) != RequiredWebSocketVersion {
		return nil, ErrBadWebSocketVersion
	}

	// The client key is a base64-encoded 16-byte nonce.
	key := strings.TrimSpace(req.Header.Get(HeaderSecWebSocketKey))
	if nonce, err := base64.StdEncoding.DecodeString(key); err != nil || len(nonce) != 16 {
		return nil, ErrMissingWebSocketKey
	}

	hdr := make(http.Header)
	hdr.Set("Upgrade", "websocket")
	hdr.Set("Connection", "Upgrade")
	hdr.Set(HeaderSecWebSocketAccept, ComputeAcceptKey(key))
	return hdr, nil
}

// ComputeAcceptKey derives Sec-WebSocket-Accept from the client's key (RFC 6455 §1.3).
func ComputeAcceptKey(clientKey string) string {
	sum := sha1.Sum([]byte(clientKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// headerContainsToken checks if headerName contains the given token (case-insensitive).
func headerContainsToken(h http.Header, headerName, token string) bool {
	vals := h[http.CanonicalHeaderKey(headerName)]
	token = strings.ToLower(token)
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(part)) == token {
				return true
			}
		}
	}
	return false
}
