// File: api/websocket.go
// Author: momentics <momentics@gmail.com>
//
// Defines the pluggable WebSocket handshake and codec contracts. The dispatch
// loop only orchestrates; everything about bytes on the wire lives behind
// these interfaces.

package api

// HandshakeStatus is the outcome of one handshake attempt.
type HandshakeStatus int

const (
	// HandshakeNeedMore means the request is incomplete; keep the bytes.
	HandshakeNeedMore HandshakeStatus = iota
	HandshakeEstablished
	HandshakeRejected
)

func (s HandshakeStatus) String() string {
	switch s {
	case HandshakeNeedMore:
		return "need_more"
	case HandshakeEstablished:
		return "established"
	case HandshakeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// HandshakeResult carries the outcome of TryCompleteHandshake.
type HandshakeResult struct {
	Status HandshakeStatus

	// Session is set when Status is HandshakeEstablished.
	Session Session

	// Response holds the bytes to send to the client: the 101 response on
	// success, an HTTP error response on rejection (may be empty).
	Response []byte

	// Err explains a rejection.
	Err error
}

// Handshaker promotes a buffered HTTP Upgrade request to a codec session.
type Handshaker interface {
	// TryCompleteHandshake inspects everything received so far. Bytes that
	// follow the request are handed to the new Session.
	TryCompleteHandshake(buffered []byte) HandshakeResult
}

// DecodeKind classifies one DecodeNext outcome.
type DecodeKind int

const (
	DecodeNeedMore DecodeKind = iota
	DecodeText
	DecodeClose
	DecodeError
)

func (k DecodeKind) String() string {
	switch k {
	case DecodeNeedMore:
		return "need_more"
	case DecodeText:
		return "text"
	case DecodeClose:
		return "close"
	case DecodeError:
		return "error"
	default:
		return "unknown"
	}
}

// Decoded is one message-level decode result.
type Decoded struct {
	Kind DecodeKind
	Text string

	// CloseCode is the status code received in a close frame, or the code a
	// decode error should be reported to the peer with.
	CloseCode uint16
	Err       error
}

// Session is an established codec session for one connection.
type Session interface {
	// Feed appends raw bytes read from the socket.
	Feed(p []byte)

	// DecodeNext decodes at most one message from the fed bytes.
	DecodeNext() Decoded

	// Buffered reports how many fed bytes are not decoded yet.
	Buffered() int

	EncodeText(text string) ([]byte, error)
	EncodeClose(code uint16, reason string) []byte
}
