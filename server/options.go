// File: server/options.go
// Package server defines functional options for the relay Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/control"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records relay activity into m.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithProbes registers the relay's debug probes in dp.
func WithProbes(dp *control.DebugProbes) Option {
	return func(s *Server) {
		s.probes = dp
	}
}

// WithPoller replaces the OS readiness poller. The server takes ownership.
func WithPoller(p api.Poller) Option {
	return func(s *Server) {
		s.poller = p
	}
}

// WithListener replaces the TCP listener bound from Config.Addr. The server
// takes ownership.
func WithListener(l api.Listener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// WithHandshaker replaces the RFC 6455 handshaker and codec.
func WithHandshaker(h api.Handshaker) Option {
	return func(s *Server) {
		s.handshaker = h
	}
}
