// File: fake/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory api.Socket and api.Listener.

package fake

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
)

var nextFd atomic.Int64

func init() {
	nextFd.Store(100)
}

// Unlimited disables the write capacity limit of a Socket.
const Unlimited = -1

// Socket is a fake non-blocking socket. Reads drain bytes queued with
// Inject; writes are captured and limited by the write capacity.
type Socket struct {
	mu       sync.Mutex
	fd       int
	remote   string
	in       bytes.Buffer
	out      bytes.Buffer
	eof      bool
	readErr  error
	writeErr error
	capacity int
	closes   int
}

var _ api.Socket = (*Socket)(nil)

// NewSocket returns a socket with a fresh descriptor and unlimited write capacity.
func NewSocket(remote string) *Socket {
	return &Socket{
		fd:       int(nextFd.Add(1)),
		remote:   remote,
		capacity: Unlimited,
	}
}

func (s *Socket) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return 0, api.ErrClosed
	}
	if s.in.Len() > 0 {
		return s.in.Read(p)
	}
	if s.readErr != nil {
		return 0, s.readErr
	}
	if s.eof {
		return 0, io.EOF
	}
	return 0, api.ErrWouldBlock
}

func (s *Socket) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closes > 0 {
		return 0, api.ErrClosed
	}
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	n := len(p)
	if s.capacity != Unlimited {
		if s.capacity == 0 {
			return 0, api.ErrWouldBlock
		}
		n = min(n, s.capacity)
		s.capacity -= n
	}
	s.out.Write(p[:n])
	return n, nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *Socket) Fd() int            { return s.fd }
func (s *Socket) RemoteAddr() string { return s.remote }

// Inject queues bytes for Read.
func (s *Socket) Inject(p []byte) {
	s.mu.Lock()
	s.in.Write(p)
	s.mu.Unlock()
}

// SetEOF makes Read return io.EOF once queued bytes are drained.
func (s *Socket) SetEOF() {
	s.mu.Lock()
	s.eof = true
	s.mu.Unlock()
}

// SetReadError makes Read fail with err once queued bytes are drained.
func (s *Socket) SetReadError(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// SetWriteError makes every Write fail with err.
func (s *Socket) SetWriteError(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// SetWriteCapacity limits how many more bytes Write accepts before it
// reports api.ErrWouldBlock. Unlimited removes the limit.
func (s *Socket) SetWriteCapacity(n int) {
	s.mu.Lock()
	s.capacity = n
	s.mu.Unlock()
}

// Written returns a copy of everything written so far.
func (s *Socket) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.out.Bytes())
}

// ResetWritten discards captured output.
func (s *Socket) ResetWritten() {
	s.mu.Lock()
	s.out.Reset()
	s.mu.Unlock()
}

// Closed reports whether Close was called at least once.
func (s *Socket) Closed() bool {
	return s.CloseCount() > 0
}

// CloseCount reports how many times Close was called.
func (s *Socket) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Listener is a fake api.Listener handing out queued sockets.
type Listener struct {
	mu        sync.Mutex
	fd        int
	addr      *net.TCPAddr
	backlog   []api.Socket
	acceptErr error
	closed    bool
}

var _ api.Listener = (*Listener)(nil)

// NewListener returns a listener reporting 127.0.0.1:9001.
func NewListener() *Listener {
	return &Listener{
		fd:   int(nextFd.Add(1)),
		addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9001},
	}
}

// Enqueue makes sockets available to Accept.
func (l *Listener) Enqueue(socks ...api.Socket) {
	l.mu.Lock()
	l.backlog = append(l.backlog, socks...)
	l.mu.Unlock()
}

// SetAcceptError makes Accept fail with err once the backlog is drained.
func (l *Listener) SetAcceptError(err error) {
	l.mu.Lock()
	l.acceptErr = err
	l.mu.Unlock()
}

func (l *Listener) Accept() (api.Socket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, api.ErrClosed
	}
	if len(l.backlog) > 0 {
		s := l.backlog[0]
		l.backlog = l.backlog[1:]
		return s, nil
	}
	if l.acceptErr != nil {
		return nil, l.acceptErr
	}
	return nil, api.ErrWouldBlock
}

func (l *Listener) Fd() int        { return l.fd }
func (l *Listener) Addr() net.Addr { return l.addr }

func (l *Listener) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
