// File: server/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection drives one client socket through handshake and established
// phases. It never blocks: reads stop at would-block, and output that the
// socket cannot take right now is queued until the next writable event.

package server

import (
	"errors"
	"io"

	"github.com/eapache/queue"
	"github.com/gobwas/ws"
	"github.com/momentics/hioload-relay/api"
)

// Phase is the lifecycle stage of a Connection.
type Phase int

const (
	PhaseAwaitingHandshake Phase = iota
	PhaseEstablished
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingHandshake:
		return "awaiting_handshake"
	case PhaseEstablished:
		return "established"
	case PhaseClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ResultKind classifies what a readiness callback produced.
type ResultKind int

const (
	ResultNoop ResultKind = iota
	ResultHandshakeCompleted
	ResultMessage
	ResultClosed
)

func (k ResultKind) String() string {
	switch k {
	case ResultNoop:
		return "noop"
	case ResultHandshakeCompleted:
		return "handshake_completed"
	case ResultMessage:
		return "message"
	case ResultClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason labels why a connection left the table.
type CloseReason string

const (
	ReasonPeerClosed        CloseReason = "peer_closed"
	ReasonEmptyMessage      CloseReason = "empty_message"
	ReasonReadError         CloseReason = "read_error"
	ReasonDecodeError       CloseReason = "decode_error"
	ReasonHandshakeRejected CloseReason = "handshake_rejected"
	ReasonSendFailed        CloseReason = "send_failed"
	ReasonShutdown          CloseReason = "shutdown"
)

// DispatchResult is returned by OnReadable and OnWritable.
type DispatchResult struct {
	Kind ResultKind

	// Text is the decoded message for ResultMessage.
	Text string

	// Reason and Err describe a ResultClosed.
	Reason CloseReason
	Err    error
}

var noop = DispatchResult{Kind: ResultNoop}

// Connection owns one accepted socket. It is confined to the dispatch loop.
type Connection struct {
	id         api.ConnectionID
	sock       api.Socket
	phase      Phase
	handshaker api.Handshaker
	session    api.Session

	// inbound holds request bytes until the handshake completes; afterwards
	// the session buffers undecoded input.
	inbound []byte
	scratch []byte

	outbound   *queue.Queue // of []byte, oldest first
	headOff    int          // bytes of the head element already written
	pending    int          // unwritten bytes across outbound
	maxPending int

	established bool // counted in Table's established mirror
}

func newConnection(id api.ConnectionID, sock api.Socket, h api.Handshaker, scratch []byte, maxPending int) *Connection {
	return &Connection{
		id:         id,
		sock:       sock,
		phase:      PhaseAwaitingHandshake,
		handshaker: h,
		scratch:    scratch,
		outbound:   queue.New(),
		maxPending: maxPending,
	}
}

func (c *Connection) ID() api.ConnectionID { return c.id }
func (c *Connection) Phase() Phase         { return c.phase }
func (c *Connection) Fd() int              { return c.sock.Fd() }
func (c *Connection) RemoteAddr() string   { return c.sock.RemoteAddr() }

// Pending reports queued, unwritten output bytes.
func (c *Connection) Pending() int { return c.pending }

// OnReadable makes progress on inbound data and returns at most one result.
// The caller keeps invoking it until it returns ResultNoop or ResultClosed.
func (c *Connection) OnReadable() DispatchResult {
	for {
		switch c.phase {
		case PhaseAwaitingHandshake:
			data, res, ok := c.fill()
			if !ok {
				return res
			}
			c.inbound = append(c.inbound, data...)
			if res, done := c.tryHandshake(); done {
				return res
			}

		case PhaseEstablished:
			d := c.session.DecodeNext()
			switch d.Kind {
			case api.DecodeText:
				if d.Text == "" {
					c.closeWith(uint16(ws.StatusNormalClosure), "")
					return c.closed(ReasonEmptyMessage, nil)
				}
				return DispatchResult{Kind: ResultMessage, Text: d.Text}
			case api.DecodeClose:
				c.closeWith(d.CloseCode, "")
				return c.closed(ReasonPeerClosed, nil)
			case api.DecodeError:
				c.closeWith(d.CloseCode, "")
				return c.closed(ReasonDecodeError, d.Err)
			case api.DecodeNeedMore:
				data, res, ok := c.fill()
				if !ok {
					return res
				}
				c.session.Feed(data)
			}

		case PhaseClosing:
			return noop
		}
	}
}

// OnWritable flushes queued output.
func (c *Connection) OnWritable() DispatchResult {
	switch c.phase {
	case PhaseAwaitingHandshake, PhaseEstablished:
		if err := c.flush(); err != nil {
			return c.closed(ReasonSendFailed, err)
		}
	case PhaseClosing:
	}
	return noop
}

// Send encodes text and writes it, queueing whatever the socket does not
// accept now. ErrBackpressure means the peer fell more than maxPending
// bytes behind.
func (c *Connection) Send(text string) error {
	switch c.phase {
	case PhaseEstablished:
	case PhaseAwaitingHandshake, PhaseClosing:
		return api.ErrClosed
	}
	frame, err := c.session.EncodeText(text)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// markClosing excludes the connection from further dispatch before removal.
func (c *Connection) markClosing() {
	c.phase = PhaseClosing
}

// close releases the socket. Safe to call more than once.
func (c *Connection) close() error {
	c.phase = PhaseClosing
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = closedSocket{fd: c.sock.Fd(), remote: c.sock.RemoteAddr()}
	return err
}

func (c *Connection) tryHandshake() (DispatchResult, bool) {
	res := c.handshaker.TryCompleteHandshake(c.inbound)
	switch res.Status {
	case api.HandshakeNeedMore:
		return noop, false
	case api.HandshakeEstablished:
		c.inbound = nil
		c.session = res.Session
		c.phase = PhaseEstablished
		if err := c.enqueue(res.Response); err != nil {
			return c.closed(ReasonSendFailed, err), true
		}
		return DispatchResult{Kind: ResultHandshakeCompleted}, true
	case api.HandshakeRejected:
		c.writeBestEffort(res.Response)
		return c.closed(ReasonHandshakeRejected, res.Err), true
	}
	return c.closed(ReasonHandshakeRejected, api.ErrInvalidArgument), true
}

// fill reads once. ok is false when the caller must return res instead.
func (c *Connection) fill() (data []byte, res DispatchResult, ok bool) {
	n, err := c.sock.Read(c.scratch)
	if n > 0 {
		return c.scratch[:n], noop, true
	}
	switch {
	case err == nil:
		// Zero-length read without error; treat as no progress.
		return nil, noop, false
	case errors.Is(err, api.ErrWouldBlock):
		return nil, noop, false
	case errors.Is(err, io.EOF):
		return nil, c.closed(ReasonPeerClosed, nil), false
	default:
		return nil, c.closed(ReasonReadError, err), false
	}
}

func (c *Connection) closed(reason CloseReason, err error) DispatchResult {
	c.phase = PhaseClosing
	return DispatchResult{Kind: ResultClosed, Reason: reason, Err: err}
}

// closeWith sends a close frame, ignoring failures.
func (c *Connection) closeWith(code uint16, reason string) {
	if c.session == nil {
		return
	}
	c.writeBestEffort(c.session.EncodeClose(code, reason))
}

// writeBestEffort flushes the queue and then writes p once if nothing is
// left in front of it.
func (c *Connection) writeBestEffort(p []byte) {
	if len(p) == 0 {
		return
	}
	if err := c.flush(); err != nil || c.outbound.Length() > 0 {
		return
	}
	_, _ = c.writeSome(p)
}

func (c *Connection) enqueue(p []byte) error {
	if c.outbound.Length() == 0 {
		n, err := c.writeSome(p)
		if err != nil {
			return err
		}
		p = p[n:]
		if len(p) == 0 {
			return nil
		}
	}
	if c.pending+len(p) > c.maxPending {
		return api.ErrBackpressure
	}
	c.outbound.Add(p)
	c.pending += len(p)
	return nil
}

func (c *Connection) flush() error {
	for c.outbound.Length() > 0 {
		head := c.outbound.Peek().([]byte)[c.headOff:]
		n, err := c.writeSome(head)
		c.pending -= n
		if err != nil {
			return err
		}
		if n < len(head) {
			c.headOff += n
			return nil
		}
		c.outbound.Remove()
		c.headOff = 0
	}
	return nil
}

// writeSome writes until p is done or the socket would block.
func (c *Connection) writeSome(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := c.sock.Write(p[written:])
		written += n
		if err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				return written, nil
			}
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// closedSocket stands in for a released socket so late calls fail cleanly.
type closedSocket struct {
	fd     int
	remote string
}

func (s closedSocket) Read([]byte) (int, error)  { return 0, api.ErrClosed }
func (s closedSocket) Write([]byte) (int, error) { return 0, api.ErrClosed }
func (s closedSocket) Close() error              { return nil }
func (s closedSocket) Fd() int                   { return s.fd }
func (s closedSocket) RemoteAddr() string        { return s.remote }
