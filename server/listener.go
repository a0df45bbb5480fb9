// File: server/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listener entry of the dispatch loop: turns accept readiness into new
// connections.

package server

import (
	"errors"

	"github.com/momentics/hioload-relay/api"
)

// listenerEntry drains the accept backlog on each listener event.
type listenerEntry struct {
	ln api.Listener
}

// drain accepts until the backlog is empty. Any error other than
// api.ErrWouldBlock is returned as is; the listener retries transient ones.
func (e listenerEntry) drain(onAccept func(api.Socket)) error {
	for {
		sock, err := e.ln.Accept()
		if err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				return nil
			}
			return err
		}
		onAccept(sock)
	}
}

// accept drains the listener. An accept failure is fatal for the relay.
func (s *Server) accept() error {
	err := listenerEntry{ln: s.listener}.drain(s.addConnection)
	if err != nil {
		return api.NewError(api.ErrCodeInternal, "accept").
			WithContext("addr", s.listener.Addr().String()).
			Wrap(err)
	}
	return nil
}

// addConnection registers sock under a fresh ID. A socket that cannot be
// registered is dropped; the relay keeps serving.
func (s *Server) addConnection(sock api.Socket) {
	id := s.nextID
	s.nextID++
	s.lastID.Store(uint64(id))

	c := newConnection(id, sock, s.handshaker, s.scratch, s.cfg.MaxPendingBytes)
	if err := s.poller.Register(sock.Fd(), id, api.InterestReadWrite); err != nil {
		s.log.Warn("conn.register_failed", "id", id, "remote", sock.RemoteAddr(), "err", err)
		_ = sock.Close()
		return
	}
	if err := s.table.Insert(c); err != nil {
		// IDs are never reused, so this means the table and poller diverged.
		s.log.Error("conn.insert_failed", "id", id, "err", err)
		_ = s.poller.Deregister(sock.Fd())
		_ = sock.Close()
		return
	}

	s.metrics.ConnectionAccepted()
	s.metrics.SetConnections(s.table.Len(), s.table.Established())
	s.log.Info("conn.accepted", "id", id, "remote", sock.RemoteAddr())
}
