// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the relay's WebSocket codec (RFC 6455): the server side of the
// opening handshake over a byte buffer that may still be incomplete, and an
// incremental text-message decoder for non-blocking sockets.
//
// Includes:
//   - Handshaker: HTTP Upgrade validation and Sec-WebSocket-Accept computation
//   - Session: buffered frame decoding, unmasking, close-frame parsing
//   - Text and close frame encoding
//
// Binary, ping and pong frames are skipped. Fragmented messages are rejected.
package protocol
