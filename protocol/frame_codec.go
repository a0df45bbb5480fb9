// File: protocol/frame_codec.go
// Package protocol implements the buffered frame codec with frame size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frames are decoded from a byte slice that may end mid-frame; an incomplete
// frame is reported as "nothing consumed" so the caller can wait for more
// bytes without losing any.

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gobwas/ws"
)

// DecodeFrameFromBytes parses one client frame from raw, enforcing the
// payload limit and the server-side header rules (masking, reserved bits,
// control frame constraints). The payload is unmasked into a fresh slice.
//
// Returns header, payload and consumed bytes. If the frame is incomplete it
// returns consumed == 0 and a nil error.
func DecodeFrameFromBytes(raw []byte, maxPayload int64) (ws.Header, []byte, int, error) {
	r := bytes.NewReader(raw)
	h, err := ws.ReadHeader(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ws.Header{}, nil, 0, nil // Incomplete
		}
		return h, nil, 0, fmt.Errorf("read frame header: %w", err)
	}
	if h.Length > maxPayload {
		return h, nil, 0, ErrFrameTooLarge
	}
	if err := ws.CheckHeader(h, ws.StateServerSide); err != nil {
		return h, nil, 0, err
	}

	offset := len(raw) - r.Len()
	total := offset + int(h.Length)
	if len(raw) < total {
		return ws.Header{}, nil, 0, nil // Incomplete
	}

	payload := make([]byte, h.Length)
	copy(payload, raw[offset:total])
	if h.Masked {
		ws.Cipher(payload, h.Mask, 0)
	}
	return h, payload, total, nil
}

// EncodeTextFrame serializes a single unmasked, final text frame.
func EncodeTextFrame(text string) ([]byte, error) {
	return ws.CompileFrame(ws.NewTextFrame([]byte(text)))
}

// EncodeCloseFrame serializes an unmasked close frame. Code 0 produces a
// close frame without a status body.
func EncodeCloseFrame(code uint16, reason string) []byte {
	if code == 0 {
		return ws.MustCompileFrame(ws.NewCloseFrame(nil))
	}
	return ws.MustCompileFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusCode(code), reason)))
}

// closeCodeFor maps a decode error to the status reported to the peer.
func closeCodeFor(err error) uint16 {
	switch {
	case errors.Is(err, ErrFrameTooLarge):
		return uint16(ws.StatusMessageTooBig)
	case errors.Is(err, ErrInvalidUTF8), errors.Is(err, ws.ErrProtocolInvalidUTF8):
		return uint16(ws.StatusInvalidFramePayloadData)
	case errors.Is(err, ErrFragmented):
		return uint16(ws.StatusUnsupportedData)
	default:
		return uint16(ws.StatusProtocolError)
	}
}
