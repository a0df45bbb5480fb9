// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the non-blocking socket abstraction consumed by the dispatch loop.

package api

import "net"

// Socket is a non-blocking, full-duplex stream connection.
//
// Read and Write never block: when no data or buffer space is available they
// return ErrWouldBlock. Read returns io.EOF once the peer has shut down its side.
type Socket interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error

	// Fd returns the descriptor registered with the Poller.
	Fd() int

	RemoteAddr() string
}

// Listener is a non-blocking accept-only socket.
type Listener interface {
	// Accept returns the next pending connection, or ErrWouldBlock when the
	// backlog is drained.
	Accept() (Socket, error)
	Fd() int
	Addr() net.Addr
	Close() error
}
