// internal/transport/transport_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux non-blocking TCP socket.

package transport

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
	"golang.org/x/sys/unix"
)

// Socket is a connected non-blocking TCP socket implementing api.Socket.
type Socket struct {
	fd     int
	remote string
	closed atomic.Bool
}

var _ api.Socket = (*Socket)(nil)

func newSocket(fd int, sa unix.Sockaddr) *Socket {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return &Socket{fd: fd, remote: sockaddrString(sa)}
}

// Read reads what is available without blocking.
func (s *Socket) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, api.ErrClosed
	}
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("read fd %d: %w", s.fd, err)
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write writes as much of p as the kernel accepts. A short count with a nil
// error is a partial write; zero with ErrWouldBlock means the send buffer is full.
func (s *Socket) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, api.ErrClosed
	}
	for {
		n, err := unix.SendmsgN(s.fd, p, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, fmt.Errorf("write fd %d: %w", s.fd, err)
		}
		return n, nil
	}
}

// Close closes the descriptor; idempotent.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(s.fd)
}

// Fd returns the raw descriptor.
func (s *Socket) Fd() int { return s.fd }

// RemoteAddr returns the peer address as host:port.
func (s *Socket) RemoteAddr() string { return s.remote }

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	default:
		return "unknown"
	}
}

func sockaddrToTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), a.Addr[:]...), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP(nil), a.Addr[:]...), Port: a.Port}
	default:
		return nil
	}
}
