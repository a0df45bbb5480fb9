// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants and codec errors.

package protocol

import "errors"

const (
	// WebSocketGUID is appended to the client key to derive Sec-WebSocket-Accept.
	WebSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	HeaderConnection         = "Connection"
	HeaderUpgrade            = "Upgrade"
	HeaderSecWebSocketKey    = "Sec-WebSocket-Key"
	HeaderSecWebSocketVer    = "Sec-WebSocket-Version"
	HeaderSecWebSocketAccept = "Sec-WebSocket-Accept"
	RequiredWebSocketVersion = "13"

	// DefaultMaxHandshakeBytes caps the request line plus headers.
	DefaultMaxHandshakeBytes = 8192

	// DefaultMaxPayload caps a single frame payload.
	DefaultMaxPayload = 1 << 20 // 1 MiB
)

// Handshake errors.
var (
	ErrInvalidUpgradeHeaders = errors.New("invalid WebSocket upgrade headers")
	ErrMissingWebSocketKey   = errors.New("missing or malformed Sec-WebSocket-Key header")
	ErrBadWebSocketVersion   = errors.New("unsupported WebSocket version; only '13' is supported")
	ErrBadMethod             = errors.New("WebSocket upgrade requires GET")
)

// Frame errors.
var (
	ErrFrameTooLarge  = errors.New("frame payload exceeds maximum allowed size")
	ErrFragmented     = errors.New("fragmented messages are not supported")
	ErrInvalidUTF8    = errors.New("text payload is not valid UTF-8")
	ErrShortCloseBody = errors.New("close frame body shorter than a status code")
)
