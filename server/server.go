// File: server/server.go
// Package server implements the single-threaded WebSocket broadcast relay:
// the connection table, the listener entry and the dispatch loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/control"
	"github.com/momentics/hioload-relay/internal/transport"
	"github.com/momentics/hioload-relay/protocol"
	"github.com/momentics/hioload-relay/reactor"
)

// ErrAlreadyRunning is returned when Run is called more than once.
var ErrAlreadyRunning = errors.New("server already running")

// Server is the relay context: poller, listener, connection table and the
// ID counter, all owned by the goroutine executing Run.
type Server struct {
	cfg        *Config
	log        *slog.Logger
	metrics    *control.Metrics
	probes     *control.DebugProbes
	poller     api.Poller
	listener   api.Listener
	handshaker api.Handshaker

	table  *Table
	nextID api.ConnectionID
	lastID atomic.Uint64 // mirror of nextID-1 for probes

	events  []api.Event
	scratch []byte

	// backlog holds connections whose read budget ran out with input left.
	backlog   []api.ConnectionID
	inBacklog map[api.ConnectionID]struct{}
	failed    []sendFailure

	running  atomic.Bool
	stopping atomic.Bool
}

type sendFailure struct {
	id  api.ConnectionID
	err error
}

// New builds a relay bound to cfg.Addr, or to the listener given through
// WithListener. Nothing is served until Run.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		table:     NewTable(),
		nextID:    api.FirstConnectionID,
		events:    make([]api.Event, cfg.EventBatch),
		scratch:   make([]byte, cfg.ReadBufferSize),
		inBacklog: make(map[api.ConnectionID]struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	if s.handshaker == nil {
		s.handshaker = protocol.NewHandshaker(protocol.Limits{
			MaxHandshakeBytes: cfg.MaxHandshakeBytes,
			MaxPayload:        cfg.MaxMessageSize,
		})
	}

	if s.poller == nil {
		p, err := reactor.New()
		if err != nil {
			s.release()
			return nil, api.NewError(api.ErrCodeInternal, "create poller").Wrap(err)
		}
		s.poller = p
	}

	if s.listener == nil {
		ln, err := transport.Listen(cfg.Addr())
		if err != nil {
			s.release()
			return nil, api.NewError(api.ErrCodeInternal, "listen").
				WithContext("addr", cfg.Addr()).
				Wrap(err)
		}
		s.listener = ln
	}

	if err := s.poller.Register(s.listener.Fd(), api.ListenerID, api.InterestReadable); err != nil {
		s.release()
		return nil, api.NewError(api.ErrCodeInternal, "register listener").Wrap(err)
	}

	if s.probes != nil {
		s.registerProbes(s.probes)
	}
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Shutdown asks Run to close every connection and return. It may be called
// from any goroutine, before or during Run.
func (s *Server) Shutdown() {
	if s.stopping.CompareAndSwap(false, true) {
		_ = s.poller.Wake()
	}
}

// Connections reports the table size. Safe from any goroutine.
func (s *Server) Connections() int { return s.table.Len() }

// Established reports connections past the handshake. Safe from any goroutine.
func (s *Server) Established() int { return s.table.Established() }

func (s *Server) registerProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("connections", func() any { return s.table.Len() })
	dp.RegisterProbe("established", func() any { return s.table.Established() })
	dp.RegisterProbe("registrations", func() any { return s.poller.Registered() })
	dp.RegisterProbe("next_id", func() any { return s.lastID.Load() + 1 })
	dp.RegisterProbe("listen_addr", func() any { return s.listener.Addr().String() })
}

// release closes whatever New managed to create or was handed.
func (s *Server) release() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.poller != nil {
		_ = s.poller.Close()
	}
}
