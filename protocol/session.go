// File: protocol/session.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session is the established-phase codec state of one connection.

package protocol

import (
	"unicode/utf8"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-relay/api"
)

// Session implements api.Session over an internal inbound buffer.
type Session struct {
	buf        []byte
	off        int // start of undecoded bytes in buf
	maxPayload int64
}

var _ api.Session = (*Session)(nil)

// NewSession creates a session enforcing maxPayload per frame.
func NewSession(maxPayload int64) *Session {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Session{maxPayload: maxPayload}
}

// Feed appends raw socket bytes. p is copied.
func (s *Session) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	if s.off > 0 {
		// Reclaim the decoded prefix before growing.
		n := copy(s.buf, s.buf[s.off:])
		s.buf = s.buf[:n]
		s.off = 0
	}
	s.buf = append(s.buf, p...)
}

// Buffered reports undecoded bytes.
func (s *Session) Buffered() int {
	return len(s.buf) - s.off
}

// DecodeNext decodes the next text message or close request. Binary, ping
// and pong frames are consumed and skipped.
func (s *Session) DecodeNext() api.Decoded {
	for {
		h, payload, n, err := DecodeFrameFromBytes(s.buf[s.off:], s.maxPayload)
		if err != nil {
			return decodeError(err)
		}
		if n == 0 {
			return api.Decoded{Kind: api.DecodeNeedMore}
		}
		s.off += n
		if s.off == len(s.buf) {
			s.buf = s.buf[:0]
			s.off = 0
		}

		switch h.OpCode {
		case ws.OpText:
			if !h.Fin {
				return decodeError(ErrFragmented)
			}
			if !utf8.Valid(payload) {
				return decodeError(ErrInvalidUTF8)
			}
			return api.Decoded{Kind: api.DecodeText, Text: string(payload)}
		case ws.OpClose:
			return decodeClose(payload)
		case ws.OpBinary, ws.OpPing, ws.OpPong:
			continue
		default:
			return decodeError(ws.ErrProtocolOpCodeReserved)
		}
	}
}

// EncodeText encodes text as one server frame.
func (s *Session) EncodeText(text string) ([]byte, error) {
	return EncodeTextFrame(text)
}

// EncodeClose encodes a close frame.
func (s *Session) EncodeClose(code uint16, reason string) []byte {
	return EncodeCloseFrame(code, reason)
}

// decodeClose validates a close body. An empty body carries no status and
// is answered without one; codes that must not appear on the wire are a
// protocol error.
func decodeClose(payload []byte) api.Decoded {
	switch len(payload) {
	case 0:
		return api.Decoded{Kind: api.DecodeClose}
	case 1:
		return decodeError(ErrShortCloseBody)
	}
	code, reason := ws.ParseCloseFrameData(payload)
	if err := ws.CheckCloseFrameData(code, reason); err != nil {
		return decodeError(err)
	}
	return api.Decoded{Kind: api.DecodeClose, CloseCode: uint16(code)}
}

func decodeError(err error) api.Decoded {
	return api.Decoded{Kind: api.DecodeError, Err: err, CloseCode: closeCodeFor(err)}
}
