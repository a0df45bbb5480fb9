// internal/transport/listener_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux non-blocking TCP listener.

package transport

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
	"golang.org/x/sys/unix"
)

// Listener is a bound, listening, non-blocking TCP socket.
type Listener struct {
	fd     int
	addr   *net.TCPAddr
	closed atomic.Bool
}

var _ api.Listener = (*Listener)(nil)

// Listen binds and listens on addr ("host:port"). Port 0 selects an
// ephemeral port; Addr reports the one chosen.
func Listen(addr string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); tcpAddr.IP == nil || ip4 != nil {
		in4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 != nil {
			copy(in4.Addr[:], ip4)
		}
		sa = in4
	} else {
		family = unix.AF_INET6
		in6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(in6.Addr[:], tcpAddr.IP.To16())
		sa = in6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &Listener{fd: fd, addr: sockaddrToTCP(bound)}, nil
}

// Accept returns the next queued connection or api.ErrWouldBlock.
// Connections aborted by the peer before being accepted are skipped.
func (l *Listener) Accept() (api.Socket, error) {
	if l.closed.Load() {
		return nil, api.ErrClosed
	}
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EAGAIN:
			return nil, api.ErrWouldBlock
		case err == unix.EINTR, err == unix.ECONNABORTED:
			continue
		case err != nil:
			return nil, fmt.Errorf("accept: %w", err)
		}
		return newSocket(nfd, sa), nil
	}
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.addr }

// Close stops listening; idempotent.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(l.fd)
}
