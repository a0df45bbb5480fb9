// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatch loop: wait for readiness, route events to the listener or to
// connections, broadcast decoded messages and reap closed connections.

package server

import (
	"context"
	"time"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-relay/api"
)

const blockForever time.Duration = -1

// Run serves until Shutdown is called or ctx is cancelled, then closes every
// connection, the listener and the poller. It returns nil after a graceful
// stop and an *api.Error when the poller or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	stop := context.AfterFunc(ctx, s.Shutdown)
	defer stop()

	s.log.Info("relay.listening", "addr", s.listener.Addr().String(), "reflect", s.cfg.ReflectToSender)

	for !s.stopping.Load() {
		timeout := blockForever
		if len(s.backlog) > 0 {
			timeout = 0
		}
		n, err := s.poller.Wait(s.events, timeout)
		if err != nil {
			s.teardown()
			return api.NewError(api.ErrCodeInternal, "poller wait").Wrap(err)
		}
		s.metrics.ObservePollEvents(n)
		if err := s.dispatch(s.events[:n]); err != nil {
			s.teardown()
			return err
		}
	}

	s.teardown()
	return nil
}

// dispatch services the read backlog, then the fresh events.
func (s *Server) dispatch(events []api.Event) error {
	if len(s.backlog) > 0 {
		backlog := s.backlog
		s.backlog = nil
		for _, id := range backlog {
			delete(s.inBacklog, id)
			s.serviceReadable(id)
		}
	}

	for _, ev := range events {
		if ev.Token == api.ListenerID {
			if err := s.accept(); err != nil {
				return err
			}
			continue
		}

		c, ok := s.table.Get(ev.Token)
		if !ok {
			continue // stale event for a removed connection
		}
		if ev.Writable {
			if r := c.OnWritable(); r.Kind == ResultClosed {
				s.closeConnection(ev.Token, r.Reason, r.Err)
				continue
			}
		}
		if ev.Readable || ev.Error {
			s.serviceReadable(ev.Token)
		}
	}
	return nil
}

// serviceReadable drains results from one connection, up to the per-event
// budget. A connection that hits the budget is revisited next iteration.
func (s *Server) serviceReadable(id api.ConnectionID) {
	for i := 0; i < s.cfg.MessagesPerEvent; i++ {
		c, ok := s.table.Get(id)
		if !ok {
			return
		}
		r := c.OnReadable()
		switch r.Kind {
		case ResultNoop:
			return
		case ResultClosed:
			if r.Reason == ReasonHandshakeRejected {
				s.metrics.Handshake("rejected")
			}
			s.closeConnection(id, r.Reason, r.Err)
			return
		case ResultHandshakeCompleted:
			s.table.MarkEstablished(c)
			s.metrics.Handshake("established")
			s.metrics.SetConnections(s.table.Len(), s.table.Established())
			s.log.Debug("conn.established", "id", id, "remote", c.RemoteAddr())
		case ResultMessage:
			s.broadcast(id, r.Text)
		}
	}
	if _, queued := s.inBacklog[id]; !queued {
		s.inBacklog[id] = struct{}{}
		s.backlog = append(s.backlog, id)
	}
}

// broadcast delivers text to every established connection. Pass one sends
// and marks failures closing; pass two removes them, so the table is never
// mutated while it is walked.
func (s *Server) broadcast(sender api.ConnectionID, text string) {
	s.metrics.MessageReceived()

	delivered := 0
	s.failed = s.failed[:0]
	s.table.Range(func(c *Connection) bool {
		if c.Phase() != PhaseEstablished {
			return true
		}
		if c.ID() == sender && !s.cfg.ReflectToSender {
			return true
		}
		if err := c.Send(text); err != nil {
			c.markClosing()
			s.failed = append(s.failed, sendFailure{id: c.ID(), err: err})
			return true
		}
		delivered++
		return true
	})
	s.metrics.MessagesDelivered(delivered)

	for _, f := range s.failed {
		s.metrics.SendFailed()
		s.closeConnection(f.id, ReasonSendFailed, f.err)
	}
}

// closeConnection deregisters, removes and closes id, in that order.
// Unknown IDs are ignored.
func (s *Server) closeConnection(id api.ConnectionID, reason CloseReason, cause error) {
	c, ok := s.table.Get(id)
	if !ok {
		return
	}
	if err := s.poller.Deregister(c.Fd()); err != nil {
		s.log.Debug("conn.deregister_failed", "id", id, "err", err)
	}
	s.table.Remove(id)
	if err := c.close(); err != nil {
		s.log.Debug("conn.close_failed", "id", id, "err", err)
	}

	s.metrics.ConnectionClosed(string(reason))
	s.metrics.SetConnections(s.table.Len(), s.table.Established())
	if cause != nil {
		s.log.Debug("conn.closed", "id", id, "remote", c.RemoteAddr(), "reason", string(reason), "err", cause)
	} else {
		s.log.Debug("conn.closed", "id", id, "remote", c.RemoteAddr(), "reason", string(reason))
	}
}

// teardown says goodbye to established peers and releases every resource.
func (s *Server) teardown() {
	ids := s.table.IDs()
	for _, id := range ids {
		c, ok := s.table.Get(id)
		if !ok {
			continue
		}
		switch c.Phase() {
		case PhaseEstablished:
			c.closeWith(uint16(ws.StatusGoingAway), "server shutdown")
		case PhaseAwaitingHandshake, PhaseClosing:
		}
		s.closeConnection(id, ReasonShutdown, nil)
	}
	s.backlog = nil
	clear(s.inBacklog)

	_ = s.poller.Deregister(s.listener.Fd())
	_ = s.listener.Close()
	_ = s.poller.Close()
	s.log.Info("relay.shutdown", "closed", len(ids))
}
